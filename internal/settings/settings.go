// Package settings хранит пользовательскую настройку месячного цикла.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/period"
)

const keyMonthlyCycle = "monthly_cycle_config"

// Store хранит настройки по строковым ключам.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService создает сервис настроек.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// MonthlyCycle возвращает сохраненную настройку цикла или значение по умолчанию.
// Поврежденная запись заменяется значением по умолчанию с предупреждением в лог.
func (s *Service) MonthlyCycle(ctx context.Context) (models.MonthlyCycleConfig, error) {
	raw, ok, err := s.store.Get(ctx, keyMonthlyCycle)
	if err != nil {
		return models.MonthlyCycleConfig{}, err
	}
	if !ok {
		return models.DefaultMonthlyCycleConfig(), nil
	}

	var cfg models.MonthlyCycleConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		s.logger.Warn("stored monthly cycle config is corrupt, using default", "error", err)
		return models.DefaultMonthlyCycleConfig(), nil
	}
	if err := period.ValidateConfig(cfg); err != nil {
		s.logger.Warn("stored monthly cycle config is invalid, using default", "error", err)
		return models.DefaultMonthlyCycleConfig(), nil
	}

	return cfg, nil
}

// UpdateMonthlyCycle проверяет и сохраняет настройку цикла.
func (s *Service) UpdateMonthlyCycle(ctx context.Context, cfg models.MonthlyCycleConfig) (models.MonthlyCycleConfig, error) {
	if err := period.ValidateConfig(cfg); err != nil {
		return models.MonthlyCycleConfig{}, err
	}
	if cfg.Type == models.CycleLastWorkingDay {
		cfg.Date = 0
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return models.MonthlyCycleConfig{}, fmt.Errorf("encode monthly cycle config: %w", err)
	}

	if err := s.store.Set(ctx, keyMonthlyCycle, string(raw)); err != nil {
		return models.MonthlyCycleConfig{}, err
	}

	return cfg, nil
}

// ResetToDefaults удаляет сохраненную настройку цикла.
func (s *Service) ResetToDefaults(ctx context.Context) (models.MonthlyCycleConfig, error) {
	if err := s.store.Delete(ctx, keyMonthlyCycle); err != nil {
		return models.MonthlyCycleConfig{}, err
	}
	return models.DefaultMonthlyCycleConfig(), nil
}
