package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceRepository хранит настройки и служебное состояние синхронизации.
type PreferenceRepository struct {
	db *pgxpool.Pool
}

// NewPreferenceRepository создает репозиторий настроек.
func NewPreferenceRepository(db *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get возвращает значение по ключу.
func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := r.db.QueryRow(ctx,
		`SELECT value FROM preferences WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

// Set сохраняет значение по ключу.
func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO preferences (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	return err
}

// Delete удаляет значение по ключу.
func (r *PreferenceRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM preferences WHERE key = $1`, key)
	return err
}
