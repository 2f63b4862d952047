package notifications

import (
	"testing"
	"time"

	"example.com/finance-dashboard/internal/syncer"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case event := <-ch:
		return event
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event to be delivered")
	}
	return Event{}
}

// TestHubPublishSubscribe проверяет доставку событий подписчику.
func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	hub.Publish(Event{Type: "test"})

	event := receive(t, ch)
	if event.Type != "test" {
		t.Fatalf("expected event type test, got %s", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

// TestHubBroadcast проверяет доставку всем вкладкам.
func TestHubBroadcast(t *testing.T) {
	hub := NewHub()

	first, unsubscribeFirst := hub.Subscribe()
	defer unsubscribeFirst()
	second, unsubscribeSecond := hub.Subscribe()
	defer unsubscribeSecond()

	hub.PublishProgress(syncer.ProgressEvent{IsInProgress: true, Stage: "fetching", AccountID: "acc_1", State: syncer.StateBackfilling})

	for _, ch := range []<-chan Event{first, second} {
		event := receive(t, ch)
		if event.Type != EventSyncProgress {
			t.Fatalf("expected %s, got %s", EventSyncProgress, event.Type)
		}
		progress, ok := event.Data.(syncer.ProgressEvent)
		if !ok || progress.AccountID != "acc_1" {
			t.Fatalf("unexpected payload %#v", event.Data)
		}
	}
}

// TestHubReplaysLastProgress проверяет, что новая вкладка видит текущее состояние.
func TestHubReplaysLastProgress(t *testing.T) {
	hub := NewHub()

	hub.PublishProgress(syncer.ProgressEvent{IsInProgress: true, Stage: "fetching", AccountID: "acc_1", State: syncer.StateRefreshing})
	hub.PublishProgress(syncer.ProgressEvent{Stage: "done", AccountID: "acc_1", State: syncer.StateReady})

	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	event := receive(t, ch)
	progress := event.Data.(syncer.ProgressEvent)
	if progress.State != syncer.StateReady {
		t.Fatalf("expected last state ready, got %s", progress.State)
	}

	select {
	case extra := <-ch:
		t.Fatalf("expected a single replayed event, got %#v", extra)
	default:
	}
}

// TestHubUnsubscribe проверяет закрытие канала после отписки.
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()

	ch, unsubscribe := hub.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.SubscriberCount())
	}
}
