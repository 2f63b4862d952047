package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/finance-dashboard/internal/auth"
	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/remote"
)

var (
	ErrAuthRequired = errors.New("bank re-authentication required")
	ErrEmptyToken   = errors.New("access token is empty")
)

type Config struct {
	PageSize                   int
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

// DefaultConfig возвращает настройки синхронизации по умолчанию.
func DefaultConfig() Config {
	return Config{
		PageSize:                   100,
		MaxRetries:                 3,
		InitialBackoff:             time.Second,
		MaxBackoff:                 30 * time.Second,
		MaxWindowDays:              90,
		MinWindowDays:              7,
		MaxShrinks:                 3,
		EstimatedDailyTransactions: 10,
		TokenFreshness:             5 * time.Minute,
		FreshLookback:              5 * 365 * day,
		StaleLookback:              90 * day,
		PullThreshold:              time.Hour,
		MetricsCap:                 50,
		Concurrency:                3,
	}
}

type Deps struct {
	Source       Source
	Transactions TransactionStore
	Accounts     AccountStore
	State        StateStore
	Tokens       TokenHolder
	Progress     ProgressSink
}

// Engine синхронизирует транзакции удаленного API с локальным хранилищем.
type Engine struct {
	source       Source
	transactions TransactionStore
	accounts     AccountStore
	state        *State
	tokens       TokenHolder
	progress     ProgressSink
	metrics      *MetricsLog
	cfg          Config
	logger       *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// AccountResult содержит итог обновления одного счета.
type AccountResult struct {
	AccountID string
	Count     int
	Err       error
}

// TokenStatus описывает свежесть банковского токена.
type TokenStatus struct {
	IssuedAt *time.Time `json:"issued_at,omitempty"`
	Stale    bool       `json:"stale"`
}

// NewEngine создает движок синхронизации.
func NewEngine(deps Deps, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	progress := deps.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	return &Engine{
		source:       deps.Source,
		transactions: deps.Transactions,
		accounts:     deps.Accounts,
		state:        NewState(deps.State),
		tokens:       deps.Tokens,
		progress:     progress,
		metrics:      NewMetricsLog(cfg.MetricsCap),
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// RetrieveTransactions выгружает новые транзакции счета, сохраняет их и
// возвращает выгруженный набор без дублей.
func (e *Engine) RetrieveTransactions(ctx context.Context, accountID string, forceFull bool) ([]models.Transaction, error) {
	var (
		latest    models.Transaction
		hasCursor bool
	)

	if !forceFull {
		var err error
		latest, hasCursor, err = e.transactions.Latest(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("load sync cursor: %w", err)
		}
	}

	state := StateBackfilling
	if hasCursor {
		state = StateRefreshing
	}

	return e.run(ctx, accountID, state, func(now time.Time, stats *runStats, progress *progressReporter) ([]models.Transaction, error) {
		if hasCursor && now.Sub(latest.Created) <= e.maxWindow() {
			progress.step("fetching", 0, 1)
			return e.fetchPages(ctx, remote.TransactionQuery{AccountID: accountID, StartingAfter: latest.ID}, stats)
		}

		start := latest.Created
		if !hasCursor {
			stale, err := e.IsTokenStale(ctx)
			if err != nil {
				return nil, err
			}
			lookback := e.cfg.FreshLookback
			if stale {
				lookback = e.cfg.StaleLookback
			}
			start = now.Add(-lookback)
		}

		return e.fetchRange(ctx, accountID, start, now, stats, progress)
	})
}

// IncrementalSync выгружает транзакции с последней отметки или делает
// полную выгрузку, если отметки еще нет.
func (e *Engine) IncrementalSync(ctx context.Context, accountID string) ([]models.Transaction, error) {
	watermark, ok, err := e.state.IncrementalWatermark(ctx, accountID)
	if err != nil {
		return nil, err
	}

	startedAt := e.now()

	var transactions []models.Transaction
	if ok {
		transactions, err = e.run(ctx, accountID, StateRefreshing, func(now time.Time, stats *runStats, progress *progressReporter) ([]models.Transaction, error) {
			return e.fetchRange(ctx, accountID, watermark, now, stats, progress)
		})
	} else {
		transactions, err = e.RetrieveTransactions(ctx, accountID, false)
	}
	if err != nil {
		return transactions, err
	}

	if err := e.state.SetIncrementalWatermark(ctx, accountID, startedAt); err != nil {
		return transactions, fmt.Errorf("save incremental watermark: %w", err)
	}

	return transactions, nil
}

// RefreshAll полностью перечитывает все счета; ошибка одного счета не
// останавливает остальные.
func (e *Engine) RefreshAll(ctx context.Context, accountIDs []string) []AccountResult {
	results := make([]AccountResult, len(accountIDs))
	progress := newProgressReporter(e.progress, "", StateRefreshing)
	progress.step("refreshing accounts", 0, len(accountIDs))

	var (
		mu        sync.Mutex
		completed int
		group     errgroup.Group
	)
	group.SetLimit(max(e.cfg.Concurrency, 1))

	for i, accountID := range accountIDs {
		i, accountID := i, accountID
		group.Go(func() error {
			transactions, err := e.RetrieveTransactions(ctx, accountID, true)
			results[i] = AccountResult{AccountID: accountID, Count: len(transactions), Err: err}

			mu.Lock()
			completed++
			progress.step("refreshing accounts", completed, len(accountIDs))
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("%d of %d accounts failed to refresh", failed, len(accountIDs))
	}
	progress.finish(err, len(accountIDs)-failed, len(accountIDs))

	return results
}

// SyncAccounts загружает список счетов и сохраняет его.
func (e *Engine) SyncAccounts(ctx context.Context) ([]models.Account, error) {
	stats := &runStats{}
	accounts, err := retry(ctx, e, stats, "list accounts", e.source.ListAccounts)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.UpsertAccounts(ctx, accounts); err != nil {
		return nil, fmt.Errorf("store accounts: %w", err)
	}

	e.logger.Info("accounts synced", "count", len(accounts))
	return accounts, nil
}

// UseAccessToken принимает новый банковский токен. Время выпуска берется из
// claim iat, а для повторно присланного токена не меняется.
func (e *Engine) UseAccessToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	e.tokens.SetAccessToken(token)

	storedHash, ok, err := e.state.TokenHash(ctx)
	if err != nil {
		return err
	}
	if ok && auth.CompareTokenHash(storedHash, token) {
		return nil
	}

	issuedAt, ok := auth.TokenIssuedAt(token)
	if !ok {
		issuedAt = e.now()
	}

	if err := e.state.SetTokenIssuedAt(ctx, issuedAt); err != nil {
		return err
	}

	return e.state.SetTokenHash(ctx, auth.HashToken(token))
}

// TokenStatus возвращает время выпуска токена и признак устаревания.
func (e *Engine) TokenStatus(ctx context.Context) (TokenStatus, error) {
	issuedAt, ok, err := e.state.TokenIssuedAt(ctx)
	if err != nil {
		return TokenStatus{}, err
	}
	if !ok {
		return TokenStatus{Stale: true}, nil
	}

	return TokenStatus{IssuedAt: &issuedAt, Stale: e.now().Sub(issuedAt) > e.cfg.TokenFreshness}, nil
}

// IsTokenStale сообщает, что токена нет или он старше окна свежести.
func (e *Engine) IsTokenStale(ctx context.Context) (bool, error) {
	status, err := e.TokenStatus(ctx)
	if err != nil {
		return true, err
	}
	return status.Stale, nil
}

// WasRecentlyPulled сообщает, выгружался ли счет за последние threshold.
func (e *Engine) WasRecentlyPulled(ctx context.Context, accountID string, threshold time.Duration) (bool, error) {
	if threshold <= 0 {
		threshold = e.cfg.PullThreshold
	}

	lastPull, ok, err := e.state.LastPull(ctx, accountID)
	if err != nil || !ok {
		return false, err
	}

	return e.now().Sub(lastPull) < threshold, nil
}

// Metrics возвращает журнал метрик API.
func (e *Engine) Metrics() []APIMetrics {
	return e.metrics.Snapshot()
}

// ClearMetrics очищает журнал метрик API.
func (e *Engine) ClearMetrics() {
	e.metrics.Clear()
}

type fetchFunc func(now time.Time, stats *runStats, progress *progressReporter) ([]models.Transaction, error)

// run выполняет выгрузку, сохраняет даже частичный результат и пишет метрики.
func (e *Engine) run(ctx context.Context, accountID string, state SyncState, fetch fetchFunc) (result []models.Transaction, err error) {
	startedAt := e.now()
	stats := &runStats{}
	progress := newProgressReporter(e.progress, accountID, state)
	progress.step("starting", 0, 0)
	defer func() {
		progress.finish(err, len(result), len(result))
	}()

	fetched, err := fetch(startedAt, stats, progress)
	result = Dedupe(fetched)

	if len(result) > 0 {
		progress.step("saving", 0, len(result))
		if _, storeErr := e.transactions.BulkUpsert(ctx, result); storeErr != nil {
			err = errors.Join(err, fmt.Errorf("store transactions: %w", storeErr))
		}
	}

	if err == nil {
		if stateErr := e.state.SetLastPull(ctx, accountID, e.now()); stateErr != nil {
			err = fmt.Errorf("save last pull: %w", stateErr)
		}
	}

	duration := e.now().Sub(startedAt)
	e.metrics.Record(APIMetrics{
		Timestamp:          startedAt,
		AccountID:          accountID,
		TotalRequests:      stats.requests,
		SuccessfulRequests: stats.successful,
		FailedRequests:     stats.failed,
		TotalTransactions:  len(result),
		DurationMs:         duration.Milliseconds(),
	})

	if err != nil {
		e.logger.Error("transaction sync failed", "account_id", accountID, "fetched", len(result), "requests", stats.requests, "error", err)
		return result, err
	}

	e.logger.Info("transaction sync finished", "account_id", accountID, "state", state, "fetched", len(result), "requests", stats.requests, "duration", duration)
	return result, nil
}

func (e *Engine) maxWindow() time.Duration {
	return time.Duration(e.cfg.MaxWindowDays) * day
}
