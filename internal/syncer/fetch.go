package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"example.com/finance-dashboard/internal/models"
	"example.com/finance-dashboard/internal/remote"
)

// Сколько транзакций в среднем должно попадать в одно окно выгрузки.
const chunkTargetTransactions = 1000

const day = 24 * time.Hour

// retry выполняет fn с экспоненциальной задержкой для временных ошибок.
// 401 и отсутствие токена прерывают операцию сразу.
func retry[T any](ctx context.Context, e *Engine, stats *runStats, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			stats.success()
			return result, nil
		}
		stats.failure()

		if errors.Is(err, remote.ErrUnauthorized) || errors.Is(err, remote.ErrNoAccessToken) {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrAuthRequired, err)
		}
		if !remote.IsTransient(err) || ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		if attempt >= e.cfg.MaxRetries {
			return zero, fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, attempt+1, err)
		}

		delay := e.backoff(attempt)
		e.logger.Warn("remote request failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", err)

		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func (e *Engine) backoff(attempt int) time.Duration {
	delay := float64(e.cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(e.cfg.MaxBackoff) {
		delay = float64(e.cfg.MaxBackoff)
	}

	jitter := delay * 0.2 * (rand.Float64()*2 - 1)
	delay += jitter
	if delay < 0 {
		delay = float64(e.cfg.InitialBackoff)
	}

	return time.Duration(delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchPages листает страницы запроса через starting_after до короткой страницы.
func (e *Engine) fetchPages(ctx context.Context, query remote.TransactionQuery, stats *runStats) ([]models.Transaction, error) {
	query.Limit = e.cfg.PageSize

	var out []models.Transaction
	for {
		page, err := retry(ctx, e, stats, "list transactions", func(ctx context.Context) ([]models.Transaction, error) {
			return e.source.ListTransactions(ctx, query)
		})
		if err != nil {
			return out, err
		}

		out = append(out, page...)
		if len(page) < e.cfg.PageSize {
			return out, nil
		}

		lastID := page[len(page)-1].ID
		if lastID == query.StartingAfter {
			return out, nil
		}
		query.StartingAfter = lastID
	}
}

// fetchRange выгружает [start, end) окнами от старых к новым. Размер окна
// уменьшается вдвое, если API отвергает диапазон.
func (e *Engine) fetchRange(ctx context.Context, accountID string, start, end time.Time, stats *runStats, progress *progressReporter) ([]models.Transaction, error) {
	chunkDays := e.initialChunkDays()
	shrinks := 0
	done := 0

	var collected []models.Transaction
	for since := start; since.Before(end); {
		before := since.Add(time.Duration(chunkDays) * day)
		if before.After(end) {
			before = end
		}

		total := done + chunksBetween(since, end, chunkDays)
		progress.step("fetching", done, total)

		page, err := e.fetchPages(ctx, remote.TransactionQuery{AccountID: accountID, Since: since, Before: before}, stats)
		collected = append(collected, page...)

		if errors.Is(err, remote.ErrInvalidTimeRange) {
			if chunkDays <= e.cfg.MinWindowDays || shrinks >= e.cfg.MaxShrinks {
				return collected, fmt.Errorf("window of %d days still rejected: %w", chunkDays, err)
			}
			shrinks++
			chunkDays = max(chunkDays/2, e.cfg.MinWindowDays)
			e.logger.Warn("time range rejected, shrinking window", "account_id", accountID, "window_days", chunkDays)
			progress.note("shrinking", "time range error, retrying with smaller windows", done, total)
			continue
		}
		if err != nil {
			return collected, err
		}

		done++
		since = before
	}

	progress.step("fetching", done, done)
	return collected, nil
}

func (e *Engine) initialChunkDays() int {
	daily := max(e.cfg.EstimatedDailyTransactions, 1)
	days := (chunkTargetTransactions + daily - 1) / daily
	return min(max(days, e.cfg.MinWindowDays), e.cfg.MaxWindowDays)
}

func chunksBetween(since, end time.Time, chunkDays int) int {
	span := end.Sub(since)
	size := time.Duration(chunkDays) * day
	return int((span + size - 1) / size)
}
