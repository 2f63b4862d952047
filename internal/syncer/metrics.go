package syncer

import (
	"sync"
	"time"
)

// APIMetrics описывает один прогон синхронизации.
type APIMetrics struct {
	Timestamp          time.Time `json:"timestamp"`
	AccountID          string    `json:"account_id"`
	TotalRequests      int       `json:"total_requests"`
	SuccessfulRequests int       `json:"successful_requests"`
	FailedRequests     int       `json:"failed_requests"`
	TotalTransactions  int       `json:"total_transactions"`
	DurationMs         int64     `json:"duration_ms"`
}

// MetricsLog хранит последние метрики, вытесняя самые старые записи.
type MetricsLog struct {
	mu      sync.Mutex
	limit   int
	entries []APIMetrics
}

// NewMetricsLog создает журнал метрик на capacity записей.
func NewMetricsLog(capacity int) *MetricsLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &MetricsLog{limit: capacity}
}

// Record добавляет запись в журнал.
func (l *MetricsLog) Record(entry APIMetrics) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if overflow := len(l.entries) - l.limit; overflow > 0 {
		l.entries = append(l.entries[:0:0], l.entries[overflow:]...)
	}
}

// Snapshot возвращает копию записей от старых к новым.
func (l *MetricsLog) Snapshot() []APIMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]APIMetrics, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear очищает журнал.
func (l *MetricsLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
}

type runStats struct {
	mu         sync.Mutex
	requests   int
	successful int
	failed     int
}

func (s *runStats) success() {
	s.mu.Lock()
	s.requests++
	s.successful++
	s.mu.Unlock()
}

func (s *runStats) failure() {
	s.mu.Lock()
	s.requests++
	s.failed++
	s.mu.Unlock()
}
