package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"example.com/finance-dashboard/internal/auth"
	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/remote"
)

var testNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

type memoryState struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryState() *memoryState {
	return &memoryState{values: map[string]string{}}
}

func (m *memoryState) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryState) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type memoryTransactions struct {
	mu   sync.Mutex
	byID map[string]models.Transaction
}

func newMemoryTransactions(seed ...models.Transaction) *memoryTransactions {
	store := &memoryTransactions{byID: map[string]models.Transaction{}}
	for _, txn := range seed {
		store.byID[txn.ID] = txn
	}
	return store
}

func (m *memoryTransactions) BulkUpsert(_ context.Context, transactions []models.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range transactions {
		m.byID[txn.ID] = txn
	}
	return len(transactions), nil
}

func (m *memoryTransactions) Latest(_ context.Context, accountID string) (models.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest models.Transaction
	found := false
	for _, txn := range m.byID {
		if txn.AccountID != accountID {
			continue
		}
		if !found || txn.Created.After(latest.Created) {
			latest = txn
			found = true
		}
	}
	return latest, found, nil
}

func (m *memoryTransactions) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type recordedProgress struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recordedProgress) PublishProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedProgress) terminal(accountID string) []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProgressEvent
	for _, event := range r.events {
		if !event.IsInProgress && event.AccountID == accountID {
			out = append(out, event)
		}
	}
	return out
}

type testEngine struct {
	engine       *Engine
	source       *MockSource
	transactions *memoryTransactions
	state        *memoryState
	progress     *recordedProgress
	tokens       *auth.BankToken
}

func newTestEngine(t *testing.T, cfg Config, seed ...models.Transaction) *testEngine {
	t.Helper()

	ctrl := gomock.NewController(t)
	te := &testEngine{
		source:       NewMockSource(ctrl),
		transactions: newMemoryTransactions(seed...),
		state:        newMemoryState(),
		progress:     &recordedProgress{},
		tokens:       auth.NewBankToken(),
	}

	te.engine = NewEngine(Deps{
		Source:       te.source,
		Transactions: te.transactions,
		Accounts:     NewMockAccountStore(ctrl),
		State:        te.state,
		Tokens:       te.tokens,
		Progress:     te.progress,
	}, cfg, nil)
	te.engine.now = func() time.Time { return testNow }
	te.engine.sleep = func(context.Context, time.Duration) error { return nil }

	return te
}

func txn(id string, created time.Time) models.Transaction {
	return models.Transaction{ID: id, AccountID: "acc_1", Amount: -100, Created: created, Category: "groceries", IncludeInSpending: true}
}

func recentSeed() models.Transaction {
	return txn("tx_seed", testNow.Add(-24*time.Hour))
}

func TestRetrieveTransactionsRetriesRateLimit(t *testing.T) {
	te := newTestEngine(t, DefaultConfig(), recentSeed())
	fresh := txn("tx_new", testNow.Add(-time.Hour))

	gomock.InOrder(
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: slow down", remote.ErrRateLimited)),
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
				assert.Equal(t, "tx_seed", query.StartingAfter)
				return []models.Transaction{fresh}, nil
			}),
	)

	got, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx_new", got[0].ID)

	metrics := te.engine.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, 2, metrics[0].TotalRequests)
	assert.Equal(t, 1, metrics[0].SuccessfulRequests)
	assert.Equal(t, 1, metrics[0].FailedRequests)
	assert.Equal(t, 1, metrics[0].TotalTransactions)
}

func TestRetrieveTransactionsAbortsOnUnauthorized(t *testing.T) {
	te := newTestEngine(t, DefaultConfig(), recentSeed())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: expired", remote.ErrUnauthorized)).
		Times(1)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)

	terminal := te.progress.terminal("acc_1")
	require.Len(t, terminal, 1)
	assert.Equal(t, StateFailed, terminal[0].State)

	pulled, err := te.engine.WasRecentlyPulled(context.Background(), "acc_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, pulled)
}

func TestRetrieveTransactionsDoesNotRetryMalformedBody(t *testing.T) {
	te := newTestEngine(t, DefaultConfig(), recentSeed())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("decode remote response: %w", remote.ErrMalformedBody)).
		Times(1)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	assert.ErrorIs(t, err, remote.ErrMalformedBody)
}

func TestRetrieveTransactionsGivesUpAfterMaxRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	te := newTestEngine(t, cfg, recentSeed())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, remote.ErrRateLimited).
		Times(3)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	assert.ErrorIs(t, err, remote.ErrRateLimited)
}

func TestRetrieveTransactionsStaleTokenLimitsBackfill(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			assert.True(t, query.Since.Equal(testNow.Add(-90*day)), "since %s", query.Since)
			assert.True(t, query.Before.Equal(testNow), "before %s", query.Before)
			assert.Empty(t, query.StartingAfter)
			return []models.Transaction{txn("tx_1", testNow.Add(-10*day))}, nil
		}).
		Times(1)

	got, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"tx_1"}, te.transactions.ids())
}

func TestRetrieveTransactionsFreshTokenBackfillsYears(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	require.NoError(t, te.engine.state.SetTokenIssuedAt(context.Background(), testNow.Add(-time.Minute)))

	var (
		mu      sync.Mutex
		windows []remote.TransactionQuery
	)
	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			mu.Lock()
			windows = append(windows, query)
			mu.Unlock()
			return nil, nil
		}).
		AnyTimes()

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)

	require.NotEmpty(t, windows)
	assert.True(t, windows[0].Since.Equal(testNow.Add(-5*365*day)))
	assert.True(t, windows[len(windows)-1].Before.Equal(testNow))
	for i, window := range windows {
		assert.LessOrEqual(t, window.Before.Sub(window.Since), 90*day)
		if i > 0 {
			assert.True(t, windows[i-1].Before.Equal(window.Since), "windows %d and %d are not adjacent", i-1, i)
		}
	}
}

func TestRetrieveTransactionsShrinksRejectedWindow(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())

	var calls []remote.TransactionQuery
	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			calls = append(calls, query)
			if query.Before.Sub(query.Since) > 45*day {
				return nil, fmt.Errorf("%w: window too large", remote.ErrInvalidTimeRange)
			}
			return []models.Transaction{txn(fmt.Sprintf("tx_%d", len(calls)), query.Since)}, nil
		}).
		Times(3)

	got, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, calls, 3)
	assert.Equal(t, 45*day, calls[1].Before.Sub(calls[1].Since))
	assert.True(t, calls[2].Before.Equal(testNow))
}

func TestRetrieveTransactionsEscalatesWhenShrinkFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShrinks = 1
	te := newTestEngine(t, cfg)

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, remote.ErrInvalidTimeRange).
		Times(2)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	assert.ErrorIs(t, err, remote.ErrInvalidTimeRange)
}

func TestRetrieveTransactionsPersistsPartialResults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 2
	te := newTestEngine(t, cfg, recentSeed())

	gomock.InOrder(
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
			Return([]models.Transaction{txn("tx_a", testNow.Add(-2*time.Hour)), txn("tx_b", testNow.Add(-time.Hour))}, nil),
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
				assert.Equal(t, "tx_b", query.StartingAfter)
				return nil, &remote.APIError{StatusCode: 500, Code: "internal_error"}
			}),
	)

	got, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)

	var apiErr *remote.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"tx_a", "tx_b", "tx_seed"}, te.transactions.ids())
}

func TestRetrieveTransactionsIsIdempotent(t *testing.T) {
	te := newTestEngine(t, DefaultConfig(), recentSeed())

	first := []models.Transaction{txn("tx_1", testNow.Add(-3*time.Hour)), txn("tx_2", testNow.Add(-2*time.Hour))}
	second := []models.Transaction{txn("tx_2", testNow.Add(-2*time.Hour)), txn("tx_3", testNow.Add(-time.Hour))}

	gomock.InOrder(
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(first, nil),
		te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(second, nil),
	)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)
	_, err = te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"tx_1", "tx_2", "tx_3", "tx_seed"}, te.transactions.ids())
}

func TestRetrieveTransactionsEmitsSingleTerminalEvent(t *testing.T) {
	te := newTestEngine(t, DefaultConfig(), recentSeed())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := te.engine.RetrieveTransactions(context.Background(), "acc_1", false)
	require.NoError(t, err)

	events := te.progress.events
	require.NotEmpty(t, events)
	assert.True(t, events[0].IsInProgress)
	assert.Equal(t, StateRefreshing, events[0].State)

	last := events[len(events)-1]
	assert.False(t, last.IsInProgress)
	assert.Equal(t, StateReady, last.State)
	assert.Len(t, te.progress.terminal("acc_1"), 1)
}

func TestIsTokenStale(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	stale, err := te.engine.IsTokenStale(ctx)
	require.NoError(t, err)
	assert.True(t, stale, "missing timestamp must be stale")

	require.NoError(t, te.engine.state.SetTokenIssuedAt(ctx, testNow.Add(-10*time.Minute)))
	stale, err = te.engine.IsTokenStale(ctx)
	require.NoError(t, err)
	assert.True(t, stale)

	require.NoError(t, te.engine.state.SetTokenIssuedAt(ctx, testNow.Add(-time.Minute)))
	stale, err = te.engine.IsTokenStale(ctx)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestUseAccessTokenKeepsTimestampForSameToken(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, te.engine.UseAccessToken(ctx, "opaque-token"))
	first, ok, err := te.engine.state.TokenIssuedAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(testNow))

	te.engine.now = func() time.Time { return testNow.Add(time.Hour) }
	require.NoError(t, te.engine.UseAccessToken(ctx, "opaque-token"))
	second, _, err := te.engine.state.TokenIssuedAt(ctx)
	require.NoError(t, err)
	assert.True(t, second.Equal(first))

	require.NoError(t, te.engine.UseAccessToken(ctx, "another-token"))
	third, _, err := te.engine.state.TokenIssuedAt(ctx)
	require.NoError(t, err)
	assert.True(t, third.Equal(testNow.Add(time.Hour)))

	token, err := te.tokens.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "another-token", token)

	assert.ErrorIs(t, te.engine.UseAccessToken(ctx, "  "), ErrEmptyToken)
}

func TestIncrementalSyncUsesWatermark(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()
	watermark := testNow.Add(-2 * day)
	require.NoError(t, te.engine.state.SetIncrementalWatermark(ctx, "acc_1", watermark))

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			assert.True(t, query.Since.Equal(watermark))
			return []models.Transaction{txn("tx_1", testNow.Add(-day))}, nil
		})

	got, err := te.engine.IncrementalSync(ctx, "acc_1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	next, ok, err := te.engine.state.IncrementalWatermark(ctx, "acc_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, next.Equal(testNow))
}

func TestIncrementalSyncFallsBackToBackfill(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			assert.True(t, query.Since.Equal(testNow.Add(-90*day)))
			return nil, nil
		})

	_, err := te.engine.IncrementalSync(context.Background(), "acc_1")
	require.NoError(t, err)

	_, ok, err := te.engine.state.IncrementalWatermark(context.Background(), "acc_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshAllIsAllSettled(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())

	te.source.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query remote.TransactionQuery) ([]models.Transaction, error) {
			if query.AccountID == "acc_bad" {
				return nil, remote.ErrUnauthorized
			}
			return []models.Transaction{{ID: "tx_" + query.AccountID, AccountID: query.AccountID, Created: testNow}}, nil
		}).
		Times(2)

	results := te.engine.RefreshAll(context.Background(), []string{"acc_good", "acc_bad"})
	require.Len(t, results, 2)

	assert.Equal(t, "acc_good", results[0].AccountID)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Count)

	assert.Equal(t, "acc_bad", results[1].AccountID)
	assert.True(t, errors.Is(results[1].Err, ErrAuthRequired))

	aggregate := te.progress.terminal("")
	require.Len(t, aggregate, 1)
	assert.Equal(t, StateFailed, aggregate[0].State)
}

func TestWasRecentlyPulled(t *testing.T) {
	te := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	pulled, err := te.engine.WasRecentlyPulled(ctx, "acc_1", 0)
	require.NoError(t, err)
	assert.False(t, pulled)

	require.NoError(t, te.engine.state.SetLastPull(ctx, "acc_1", testNow.Add(-30*time.Minute)))
	pulled, err = te.engine.WasRecentlyPulled(ctx, "acc_1", 0)
	require.NoError(t, err)
	assert.True(t, pulled)

	pulled, err = te.engine.WasRecentlyPulled(ctx, "acc_1", 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, pulled)
}

func TestSyncAccountsStoresAccounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := NewMockSource(ctrl)
	accounts := NewMockAccountStore(ctrl)

	engine := NewEngine(Deps{Source: source, Accounts: accounts, State: newMemoryState(), Tokens: auth.NewBankToken()}, DefaultConfig(), nil)
	engine.sleep = func(context.Context, time.Duration) error { return nil }

	list := []models.Account{{ID: "acc_1", Type: models.AccountTypeRetail}}
	source.EXPECT().ListAccounts(gomock.Any()).Return(list, nil)
	accounts.EXPECT().UpsertAccounts(gomock.Any(), list).Return(nil)

	got, err := engine.SyncAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list, got)
}
