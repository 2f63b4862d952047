package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DASHBOARD_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
}

// TestParseCSVEnv проверяет разбор списка origin из ENV.
func TestParseCSVEnv(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://localhost:5173, ,https://dash.example.com ")

	got := parseCSVEnv("CORS_ALLOWED_ORIGINS")
	want := []string{"http://localhost:5173", "https://dash.example.com"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestParseCSVEnvMissing проверяет поведение при отсутствии переменной.
func TestParseCSVEnvMissing(t *testing.T) {
	got := parseCSVEnv("MISSING_ENV")
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

// TestLoadDefaults проверяет значения синхронизации и долгов по умолчанию.
func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Sync.MaxWindowDays != 90 {
		t.Fatalf("expected 90 day window, got %d", cfg.Sync.MaxWindowDays)
	}
	if cfg.Sync.TokenFreshness != 5*time.Minute {
		t.Fatalf("expected 5m freshness, got %s", cfg.Sync.TokenFreshness)
	}
	if cfg.Sync.PullThreshold != time.Hour {
		t.Fatalf("expected 1h pull threshold, got %s", cfg.Sync.PullThreshold)
	}
	if cfg.Debt.AutoConfirmThreshold != 90 || cfg.Debt.ReviewThreshold != 70 {
		t.Fatalf("unexpected debt thresholds %+v", cfg.Debt)
	}
	if cfg.Remote.PageSize != 100 {
		t.Fatalf("expected page size 100, got %d", cfg.Remote.PageSize)
	}
}

// TestLoadOverrides проверяет переопределение через ENV.
func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_MAX_WINDOW_DAYS", "30")
	t.Setenv("SYNC_STALE_LOOKBACK", "720h")
	t.Setenv("REMOTE_BASE_URL", "http://bank.local/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Sync.MaxWindowDays != 30 {
		t.Fatalf("expected 30, got %d", cfg.Sync.MaxWindowDays)
	}
	if cfg.Sync.StaleLookback != 30*24*time.Hour {
		t.Fatalf("expected 720h, got %s", cfg.Sync.StaleLookback)
	}
	if cfg.Remote.BaseURL != "http://bank.local" {
		t.Fatalf("expected trailing slash to be trimmed, got %s", cfg.Remote.BaseURL)
	}
}

// TestLoadValidation проверяет перекрестные ограничения конфигурации.
func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing password hash", env: map[string]string{"DASHBOARD_PASSWORD_HASH": ""}, wantErr: "DASHBOARD_PASSWORD_HASH"},
		{name: "review above auto confirm", env: map[string]string{"DEBT_REVIEW_THRESHOLD": "95"}, wantErr: "DEBT_REVIEW_THRESHOLD"},
		{name: "auto confirm above 100", env: map[string]string{"DEBT_AUTO_CONFIRM_THRESHOLD": "101"}, wantErr: "DEBT_AUTO_CONFIRM_THRESHOLD"},
		{name: "min window above max", env: map[string]string{"SYNC_MIN_WINDOW_DAYS": "120"}, wantErr: "SYNC_MIN_WINDOW_DAYS"},
		{name: "non positive", env: map[string]string{"SYNC_MAX_RETRIES": "0"}, wantErr: "SYNC_MAX_RETRIES"},
		{name: "bad duration", env: map[string]string{"SYNC_TOKEN_FRESHNESS": "soon"}, wantErr: "SYNC_TOKEN_FRESHNESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
