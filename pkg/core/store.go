package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ConnState is the connection state of a Store.
type ConnState string

const (
	StateUninitialized ConnState = "uninitialized"
	StateReady         ConnState = "ready"
	StateFailed        ConnState = "failed"
)

// Config configures a Store.
type Config struct {
	Logger *slog.Logger

	// EventBuffer is the per-subscriber buffer of Watch. Zero means 100.
	EventBuffer int

	// DisableDateRevival turns off the ISO-8601 string upgrade performed by Load.
	DisableDateRevival bool

	// BackupKeys overrides the whitelist used by Backup and Restore.
	BackupKeys []string

	// AtomicRestore writes a restore in a single transaction when the backend is a Batcher.
	AtomicRestore bool

	// PersistOnOpen requests persistent storage once, in the background, after the first open.
	PersistOnOpen bool

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store is the durable key → JSON document store.
//
// The backend is opened lazily by the first operation and the connection is
// shared for the lifetime of the Store. Concurrent first callers wait on a
// single in-flight open. A failed open is retried by the next call.
//
// Store adds no locking of its own: two concurrent Saves to the same key are
// ordered by the backend, and the last commit wins.
type Store struct {
	backend Backend
	config  Config
	logger  *slog.Logger
	broker  *broker
	watches sync.WaitGroup // broker subscriptions waiting for their end

	opening singleflight.Group

	mu      sync.RWMutex
	state   ConnState
	lastErr error
	opens   int

	persistOnce sync.Once
}

// NewStore creates a Store on top of backend. A nil backend yields a store
// whose operations fail with ReasonUnavailable.
func NewStore(backend Backend, config Config) *Store {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 100
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.BackupKeys == nil {
		config.BackupKeys = BackupKeys()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		backend: backend,
		config:  config,
		logger:  logger,
		broker:  newBroker(config.EventBuffer, logger),
		state:   StateUninitialized,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// ready opens the backend if needed and returns it.
func (s *Store) ready(ctx context.Context, op string) (Backend, error) {
	if s.backend == nil {
		return nil, NewError(op, "", ReasonUnavailable, nil)
	}

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state == StateReady {
		return s.backend, nil
	}

	// The open is shared by concurrent callers, so it must not be cut short
	// by whichever of them arrived first.
	openCtx := context.WithoutCancel(ctx)
	ch := s.opening.DoChan("open", func() (any, error) {
		s.mu.RLock()
		if s.state == StateReady {
			s.mu.RUnlock()
			return nil, nil
		}
		s.mu.RUnlock()

		err := s.backend.Open(openCtx)

		s.mu.Lock()
		s.opens++
		if err != nil {
			s.state = StateFailed
			s.lastErr = err
		} else {
			s.state = StateReady
			s.lastErr = nil
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("failed to open store", "error", err)
			return nil, err
		}
		s.logger.Debug("store opened")
		if s.config.PersistOnOpen {
			s.persistOnce.Do(func() { s.requestPersistenceInBackground() })
		}
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, wrapError("open", "", res.Err)
		}
		return s.backend, nil
	case <-ctx.Done():
		return nil, wrapError(op, "", ctx.Err())
	}
}

// Save serializes value and writes it at key, replacing any existing record.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	rec, err := NewRecord(key, value, s.config.Now())
	if err != nil {
		return NewError("save", key, ReasonUnknown, err)
	}
	return s.put(ctx, rec)
}

// SaveRaw writes an already serialized JSON document at key.
func (s *Store) SaveRaw(ctx context.Context, key string, data json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !json.Valid(data) {
		return NewError("save", key, ReasonUnknown, fmt.Errorf("invalid json document"))
	}
	return s.put(ctx, Record{Key: key, Data: data, Timestamp: s.config.Now().UnixMilli()})
}

func (s *Store) put(ctx context.Context, rec Record) error {
	backend, err := s.ready(ctx, "save")
	if err != nil {
		return err
	}
	if err := backend.Put(ctx, rec); err != nil {
		s.logger.Error("save failed", "key", rec.Key, "error", err)
		return wrapError("save", rec.Key, err)
	}
	s.logger.Debug("saved", "key", rec.Key, "bytes", len(rec.Data))
	s.broker.publish(Event{Type: EventSave, Key: rec.Key, Timestamp: rec.Timestamp})
	return nil
}

// LoadRaw returns the stored JSON document at key, or nil when absent.
func (s *Store) LoadRaw(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	backend, err := s.ready(ctx, "load")
	if err != nil {
		return nil, err
	}
	rec, err := backend.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		s.logger.Error("load failed", "key", key, "error", err)
		return nil, wrapError("load", key, err)
	}
	return rec.Data, nil
}

// Load returns the value stored at key, or nil when the key is absent.
// Date-shaped strings anywhere in the value are returned as time.Time
// unless date revival is disabled.
func (s *Store) Load(ctx context.Context, key string) (any, error) {
	data, err := s.LoadRaw(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, NewError("load", key, ReasonUnknown, fmt.Errorf("corrupt document: %w", err))
	}
	if s.config.DisableDateRevival {
		return value, nil
	}
	return ReviveDates(value), nil
}

// LoadInto decodes the value stored at key into dst. It reports false when
// the key is absent, leaving dst untouched.
func (s *Store) LoadInto(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.LoadRaw(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, NewError("load", key, ReasonUnknown, fmt.Errorf("failed to decode document: %w", err))
	}
	return true, nil
}

// Remove deletes the record at key. Absent keys are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	backend, err := s.ready(ctx, "remove")
	if err != nil {
		return err
	}
	if err := backend.Delete(ctx, key); err != nil && !isNotFound(err) {
		s.logger.Error("remove failed", "key", key, "error", err)
		return wrapError("remove", key, err)
	}
	s.broker.publish(Event{Type: EventRemove, Key: key, Timestamp: s.config.Now().UnixMilli()})
	return nil
}

// Clear deletes every record. It is irreversible.
func (s *Store) Clear(ctx context.Context) error {
	backend, err := s.ready(ctx, "clear")
	if err != nil {
		return err
	}
	if err := backend.Clear(ctx); err != nil {
		s.logger.Error("clear failed", "error", err)
		return wrapError("clear", "", err)
	}
	s.logger.Info("store cleared")
	s.broker.publish(Event{Type: EventClear, Timestamp: s.config.Now().UnixMilli()})
	return nil
}

// Keys returns the sorted keys of every record.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	recs, err := s.all(ctx, "keys")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) all(ctx context.Context, op string) ([]Record, error) {
	backend, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}
	recs, err := backend.All(ctx)
	if err != nil {
		return nil, wrapError(op, "", err)
	}
	return recs, nil
}

// TestConnection reports whether the backend can be opened.
func (s *Store) TestConnection(ctx context.Context) bool {
	_, err := s.ready(ctx, "open")
	if err != nil {
		s.logger.Warn("storage connection test failed", "error", err)
		return false
	}
	return true
}

// Close closes the backend. The Store reopens lazily on the next operation.
func (s *Store) Close() error {
	s.mu.Lock()
	wasReady := s.state == StateReady
	s.state = StateUninitialized
	s.mu.Unlock()

	s.broker.close()
	if s.backend == nil || !wasReady {
		return nil
	}
	return s.backend.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
