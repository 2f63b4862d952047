package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-dashboard/internal/models"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository создает репозиторий счетов.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// UpsertAccounts сохраняет счета, полученные при синхронизации.
func (r *AccountRepository) UpsertAccounts(ctx context.Context, accounts []models.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, account := range accounts {
		owners := account.Owners
		if owners == nil {
			owners = []string{}
		}
		batch.Queue(
			`INSERT INTO accounts (id, type, description, owners)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET type = EXCLUDED.type,
			     description = EXCLUDED.description,
			     owners = EXCLUDED.owners,
			     updated_at = NOW()`,
			account.ID, account.Type, account.Description, owners,
		)
	}

	return r.db.SendBatch(ctx, batch).Close()
}

// List возвращает все сохраненные счета.
func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, type, description, owners
		 FROM accounts
		 ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Type, &account.Description, &account.Owners); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}
