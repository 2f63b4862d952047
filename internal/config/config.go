package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Debt     DebtConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	PasswordHash       string
	RateLimitPerMinute int
	RateLimitBurst     int
}

type RemoteConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	PageSize           int
}

type SyncConfig struct {
	MaxRetries                 int
	InitialBackoff             time.Duration
	MaxBackoff                 time.Duration
	MaxWindowDays              int
	MinWindowDays              int
	MaxShrinks                 int
	EstimatedDailyTransactions int
	TokenFreshness             time.Duration
	FreshLookback              time.Duration
	StaleLookback              time.Duration
	PullThreshold              time.Duration
	MetricsCap                 int
	Concurrency                int
}

type DebtConfig struct {
	AutoConfirmThreshold int
	ReviewThreshold      int
	MaxFuzzyDistance     int
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	var err error
	if cfg.Server, err = loadServer(); err != nil {
		return cfg, err
	}
	if cfg.Database, err = loadDatabase(); err != nil {
		return cfg, err
	}
	if cfg.Auth, err = loadAuth(); err != nil {
		return cfg, err
	}
	if cfg.Remote, err = loadRemote(); err != nil {
		return cfg, err
	}
	if cfg.Sync, err = loadSync(); err != nil {
		return cfg, err
	}
	if cfg.Debt, err = loadDebt(); err != nil {
		return cfg, err
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadServer() (ServerConfig, error) {
	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return ServerConfig{}, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	// SSE-поток прогресса живет долго, поэтому запись по умолчанию не ограничена жестко.
	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return ServerConfig{}, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Host:               getEnv("SERVER_HOST", "0.0.0.0"),
		Port:               serverPort,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS"),
	}, nil
}

func loadDatabase() (DatabaseConfig, error) {
	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return DatabaseConfig{}, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return DatabaseConfig{}, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return DatabaseConfig{}, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return DatabaseConfig{}, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "finance"),
		Password:        getEnv("DB_PASSWORD", "finance"),
		Name:            getEnv("DB_NAME", "finance_dashboard"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}, nil
}

func loadAuth() (AuthConfig, error) {
	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 12*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}

	rateLimitPerMinute, err := parseIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return AuthConfig{}, err
	}

	rateLimitBurst, err := parseIntEnv("AUTH_RATE_LIMIT_BURST", 5)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "finance-dashboard"),
		AccessTokenTTL:     accessTTL,
		PasswordHash:       getEnv("DASHBOARD_PASSWORD_HASH", ""),
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
	}, nil
}

func loadRemote() (RemoteConfig, error) {
	timeout, err := parseDurationEnv("REMOTE_TIMEOUT", 30*time.Second)
	if err != nil {
		return RemoteConfig{}, err
	}

	rateLimitPerMinute, err := parseIntEnv("REMOTE_RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return RemoteConfig{}, err
	}

	rateLimitBurst, err := parseIntEnv("REMOTE_RATE_LIMIT_BURST", 5)
	if err != nil {
		return RemoteConfig{}, err
	}

	pageSize, err := parseIntEnv("REMOTE_PAGE_SIZE", 100)
	if err != nil {
		return RemoteConfig{}, err
	}

	return RemoteConfig{
		BaseURL:            strings.TrimRight(getEnv("REMOTE_BASE_URL", "https://api.monzo.com"), "/"),
		Timeout:            timeout,
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
		PageSize:           pageSize,
	}, nil
}

func loadSync() (SyncConfig, error) {
	var cfg SyncConfig
	var err error

	ints := []struct {
		key      string
		fallback int
		target   *int
	}{
		{"SYNC_MAX_RETRIES", 3, &cfg.MaxRetries},
		{"SYNC_MAX_WINDOW_DAYS", 90, &cfg.MaxWindowDays},
		{"SYNC_MIN_WINDOW_DAYS", 7, &cfg.MinWindowDays},
		{"SYNC_MAX_SHRINKS", 3, &cfg.MaxShrinks},
		{"SYNC_ESTIMATED_DAILY_TRANSACTIONS", 10, &cfg.EstimatedDailyTransactions},
		{"SYNC_METRICS_CAP", 50, &cfg.MetricsCap},
		{"SYNC_CONCURRENCY", 3, &cfg.Concurrency},
	}
	for _, item := range ints {
		if *item.target, err = parseIntEnv(item.key, item.fallback); err != nil {
			return cfg, err
		}
	}

	durations := []struct {
		key      string
		fallback time.Duration
		target   *time.Duration
	}{
		{"SYNC_INITIAL_BACKOFF", time.Second, &cfg.InitialBackoff},
		{"SYNC_MAX_BACKOFF", 30 * time.Second, &cfg.MaxBackoff},
		{"SYNC_TOKEN_FRESHNESS", 5 * time.Minute, &cfg.TokenFreshness},
		{"SYNC_FRESH_LOOKBACK", 5 * 365 * 24 * time.Hour, &cfg.FreshLookback},
		{"SYNC_STALE_LOOKBACK", 90 * 24 * time.Hour, &cfg.StaleLookback},
		{"SYNC_PULL_THRESHOLD", time.Hour, &cfg.PullThreshold},
	}
	for _, item := range durations {
		if *item.target, err = parseDurationEnv(item.key, item.fallback); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func loadDebt() (DebtConfig, error) {
	autoConfirm, err := parseIntEnv("DEBT_AUTO_CONFIRM_THRESHOLD", 90)
	if err != nil {
		return DebtConfig{}, err
	}

	review, err := parseIntEnv("DEBT_REVIEW_THRESHOLD", 70)
	if err != nil {
		return DebtConfig{}, err
	}

	maxDistance, err := parseIntEnv("DEBT_MAX_FUZZY_DISTANCE", 3)
	if err != nil {
		return DebtConfig{}, err
	}

	return DebtConfig{
		AutoConfirmThreshold: autoConfirm,
		ReviewThreshold:      review,
		MaxFuzzyDistance:     maxDistance,
	}, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.PasswordHash == "" {
		return fmt.Errorf("DASHBOARD_PASSWORD_HASH is required")
	}

	if _, err := url.ParseRequestURI(c.Remote.BaseURL); err != nil {
		return fmt.Errorf("REMOTE_BASE_URL must be a valid URL: %w", err)
	}

	if c.Sync.MinWindowDays > c.Sync.MaxWindowDays {
		return fmt.Errorf("SYNC_MIN_WINDOW_DAYS cannot exceed SYNC_MAX_WINDOW_DAYS")
	}

	if c.Sync.InitialBackoff > c.Sync.MaxBackoff {
		return fmt.Errorf("SYNC_INITIAL_BACKOFF cannot exceed SYNC_MAX_BACKOFF")
	}

	if c.Debt.AutoConfirmThreshold > 100 {
		return fmt.Errorf("DEBT_AUTO_CONFIRM_THRESHOLD cannot exceed 100")
	}

	if c.Debt.ReviewThreshold >= c.Debt.AutoConfirmThreshold {
		return fmt.Errorf("DEBT_REVIEW_THRESHOLD must be lower than DEBT_AUTO_CONFIRM_THRESHOLD")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
