package notifications

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/finance-dashboard/internal/syncer"
)

const (
	EventSyncProgress = "sync_progress"
	EventDebtMatches  = "debt_matches"

	subscriberBuffer = 32
)

type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub рассылает события всем открытым вкладкам дашборда.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Event
	progress    map[string]Event
	now         func() time.Time
}

// NewHub создает хаб для SSE-подписок.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]chan Event),
		progress:    make(map[string]Event),
		now:         time.Now,
	}
}

// Subscribe возвращает канал событий и функцию отписки.
// Новый подписчик сразу получает последнее состояние синхронизации по каждому счету.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	for _, event := range h.lastProgress() {
		ch <- event
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			delete(h.subscribers, id)
			close(ch)
		})
	}
}

// Publish отправляет событие всем подписчикам; медленные подписчики теряют событие.
func (h *Hub) Publish(event Event) {
	event.Timestamp = h.now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcast(event)
}

// PublishProgress реализует syncer.ProgressSink.
func (h *Hub) PublishProgress(progress syncer.ProgressEvent) {
	event := Event{Type: EventSyncProgress, Timestamp: h.now().UTC(), Data: progress}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.progress[progress.AccountID] = event
	h.broadcast(event)
}

// SubscriberCount возвращает число активных подписчиков.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

func (h *Hub) broadcast(event Event) {
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// lastProgress возвращает сохраненные события, агрегированное идет первым.
func (h *Hub) lastProgress() []Event {
	keys := make([]string, 0, len(h.progress))
	for key := range h.progress {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	events := make([]Event, 0, len(keys))
	for _, key := range keys {
		if len(events) == subscriberBuffer {
			break
		}
		events = append(events, h.progress[key])
	}
	return events
}
