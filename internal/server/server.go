package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"example.com/finance-dashboard/internal/auth"
	"example.com/finance-dashboard/internal/config"
	"example.com/finance-dashboard/internal/debt"
	"example.com/finance-dashboard/internal/handlers"
	"example.com/finance-dashboard/internal/notifications"
	"example.com/finance-dashboard/internal/remote"
	"example.com/finance-dashboard/internal/repository"
	"example.com/finance-dashboard/internal/settings"
	"example.com/finance-dashboard/internal/syncer"
)

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)
	preferenceRepo := repository.NewPreferenceRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	debtRepo := repository.NewDebtRepository(db)
	notificationHub := notifications.NewHub()
	settingsService := settings.NewService(preferenceRepo, logger)

	bankToken := auth.NewBankToken()
	bankClient := remote.NewClient(
		cfg.Remote.BaseURL,
		cfg.Remote.Timeout,
		bankToken,
		remote.NewLimiter(cfg.Remote.RateLimitPerMinute, cfg.Remote.RateLimitBurst),
	)

	engine := syncer.NewEngine(syncer.Deps{
		Source:       bankClient,
		Transactions: transactionRepo,
		Accounts:     accountRepo,
		State:        preferenceRepo,
		Tokens:       bankToken,
		Progress:     notificationHub,
	}, syncConfig(cfg), logger)

	matcher := debt.NewMatcher(debt.MatchConfig{
		AutoConfirmThreshold: cfg.Debt.AutoConfirmThreshold,
		ReviewThreshold:      cfg.Debt.ReviewThreshold,
		MaxFuzzyDistance:     cfg.Debt.MaxFuzzyDistance,
	}, logger)
	debtService := debt.NewService(debtRepo, transactionRepo, matcher, logger)

	registerRoutes(
		e,
		handlers.NewHealthHandler(db, notificationHub),
		handlers.NewAuthHandler(cfg.Auth.PasswordHash, tokenManager),
		handlers.NewSyncHandler(engine, accountRepo, logger),
		handlers.NewNotificationHandler(notificationHub),
		handlers.NewSettingsHandler(settingsService),
		handlers.NewSpendingHandler(transactionRepo, accountRepo, settingsService),
		handlers.NewBudgetHandler(budgetRepo, transactionRepo, settingsService),
		handlers.NewDebtHandler(debtService, debtRepo, notificationHub),
		auth.SessionMiddleware(tokenManager),
		authRateLimiter(cfg.Auth),
	)

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами и CORS.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      withCORS(cfg.CORSAllowedOrigins, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func withCORS(origins []string, handler http.Handler) http.Handler {
	if len(origins) == 0 {
		return handler
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-Id",
		},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler(handler)
}

func syncConfig(cfg config.Config) syncer.Config {
	return syncer.Config{
		PageSize:                   cfg.Remote.PageSize,
		MaxRetries:                 cfg.Sync.MaxRetries,
		InitialBackoff:             cfg.Sync.InitialBackoff,
		MaxBackoff:                 cfg.Sync.MaxBackoff,
		MaxWindowDays:              cfg.Sync.MaxWindowDays,
		MinWindowDays:              cfg.Sync.MinWindowDays,
		MaxShrinks:                 cfg.Sync.MaxShrinks,
		EstimatedDailyTransactions: cfg.Sync.EstimatedDailyTransactions,
		TokenFreshness:             cfg.Sync.TokenFreshness,
		FreshLookback:              cfg.Sync.FreshLookback,
		StaleLookback:              cfg.Sync.StaleLookback,
		PullThreshold:              cfg.Sync.PullThreshold,
		MetricsCap:                 cfg.Sync.MetricsCap,
		Concurrency:                cfg.Sync.Concurrency,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
			case v.Status >= http.StatusBadRequest:
				logger.LogAttrs(c.Request().Context(), slog.LevelWarn, msg, attrs...)
			default:
				logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			}
			return nil
		},
	})
}

// authRateLimiter ограничивает попытки входа по IP.
func authRateLimiter(cfg config.AuthConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
