package syncer

import "sync"

// SyncState описывает фазу синхронизации, которую видит интерфейс.
type SyncState string

const (
	StateEmpty       SyncState = "empty"
	StateBackfilling SyncState = "backfilling"
	StateRefreshing  SyncState = "refreshing"
	StateReady       SyncState = "ready"
	StateFailed      SyncState = "failed"
)

// ProgressEvent отражает ход одной операции синхронизации.
type ProgressEvent struct {
	IsInProgress bool      `json:"is_in_progress"`
	Stage        string    `json:"stage"`
	Current      int       `json:"current"`
	Total        int       `json:"total"`
	State        SyncState `json:"state"`
	AccountID    string    `json:"account_id,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ProgressSink получает события прогресса.
type ProgressSink interface {
	PublishProgress(event ProgressEvent)
}

// ProgressFunc позволяет передать функцию как ProgressSink.
type ProgressFunc func(event ProgressEvent)

// PublishProgress вызывает саму функцию.
func (f ProgressFunc) PublishProgress(event ProgressEvent) {
	f(event)
}

type nopProgress struct{}

func (nopProgress) PublishProgress(ProgressEvent) {}

// progressReporter гарантирует ровно одно завершающее событие на операцию.
type progressReporter struct {
	mu        sync.Mutex
	sink      ProgressSink
	accountID string
	state     SyncState
	done      bool
}

func newProgressReporter(sink ProgressSink, accountID string, state SyncState) *progressReporter {
	return &progressReporter{sink: sink, accountID: accountID, state: state}
}

func (r *progressReporter) step(stage string, current, total int) {
	r.emit(ProgressEvent{IsInProgress: true, Stage: stage, Current: current, Total: total})
}

func (r *progressReporter) note(stage, message string, current, total int) {
	r.emit(ProgressEvent{IsInProgress: true, Stage: stage, Current: current, Total: total, Message: message})
}

func (r *progressReporter) finish(err error, current, total int) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()

	event := ProgressEvent{Stage: "done", Current: current, Total: total, State: StateReady, AccountID: r.accountID}
	if err != nil {
		event.Stage = "failed"
		event.State = StateFailed
		event.Message = err.Error()
	}
	r.sink.PublishProgress(event)
}

func (r *progressReporter) emit(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return
	}
	event.State = r.state
	event.AccountID = r.accountID
	r.sink.PublishProgress(event)
}
