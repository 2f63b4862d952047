package syncer

import (
	"context"
	"fmt"
	"time"
)

const (
	keyTokenTimestamp      = "token_timestamp"
	keyTokenHash           = "token_hash"
	keyLastTransactionPull = "last_transaction_pull_"
	keyLastIncrementalSync = "last_incremental_sync_"
	stateTimeLayout        = time.RFC3339Nano
)

// StateStore хранит служебные значения синхронизации по строковым ключам.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// State дает типизированный доступ к меткам токена и водяным знакам счетов.
type State struct {
	store StateStore
}

// NewState оборачивает хранилище ключей синхронизации.
func NewState(store StateStore) *State {
	return &State{store: store}
}

// TokenIssuedAt возвращает время выпуска текущего токена.
func (s *State) TokenIssuedAt(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyTokenTimestamp)
}

// SetTokenIssuedAt сохраняет время выпуска токена.
func (s *State) SetTokenIssuedAt(ctx context.Context, issuedAt time.Time) error {
	return s.setTime(ctx, keyTokenTimestamp, issuedAt)
}

// TokenHash возвращает хэш последнего принятого токена.
func (s *State) TokenHash(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, keyTokenHash)
}

// SetTokenHash сохраняет хэш принятого токена.
func (s *State) SetTokenHash(ctx context.Context, hash string) error {
	return s.store.Set(ctx, keyTokenHash, hash)
}

// LastPull возвращает время последней успешной выгрузки счета.
func (s *State) LastPull(ctx context.Context, accountID string) (time.Time, bool, error) {
	return s.getTime(ctx, keyLastTransactionPull+accountID)
}

// SetLastPull фиксирует успешную выгрузку счета.
func (s *State) SetLastPull(ctx context.Context, accountID string, at time.Time) error {
	return s.setTime(ctx, keyLastTransactionPull+accountID, at)
}

// IncrementalWatermark возвращает отметку последней инкрементальной синхронизации.
func (s *State) IncrementalWatermark(ctx context.Context, accountID string) (time.Time, bool, error) {
	return s.getTime(ctx, keyLastIncrementalSync+accountID)
}

// SetIncrementalWatermark сдвигает отметку инкрементальной синхронизации.
func (s *State) SetIncrementalWatermark(ctx context.Context, accountID string, at time.Time) error {
	return s.setTime(ctx, keyLastIncrementalSync+accountID, at)
}

func (s *State) getTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	parsed, err := time.Parse(stateTimeLayout, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse sync state %s: %w", key, err)
	}

	return parsed, true, nil
}

func (s *State) setTime(ctx context.Context, key string, value time.Time) error {
	return s.store.Set(ctx, key, value.UTC().Format(stateTimeLayout))
}
