// Package memory provides an in-process Backend, used for tests and for
// environments without durable storage.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/productbaker/pkg/core"
)

// Backend keeps records in a map. It is safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	records map[string]core.Record
	quota   int64
	open    bool
	opened  int
	openErr error
}

// Option configures the memory backend.
type Option func(*Backend)

// WithQuota limits the total serialized size of all records. Zero disables the limit.
func WithQuota(bytes int64) Option {
	return func(b *Backend) {
		b.quota = bytes
	}
}

// WithOpenError makes every Open fail with err (tests).
func WithOpenError(err error) Option {
	return func(b *Backend) {
		b.openErr = err
	}
}

// New creates an empty memory backend.
func New(opts ...Option) *Backend {
	b := &Backend{records: make(map[string]core.Record)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open implements core.Backend.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened++
	if b.openErr != nil {
		return b.openErr
	}
	b.open = true
	return nil
}

// Opens returns how many times Open was called.
func (b *Backend) Opens() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opened
}

// SetOpenError replaces the error returned by Open; nil lets Open succeed.
func (b *Backend) SetOpenError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// Put implements core.Backend.
func (b *Backend) Put(ctx context.Context, rec core.Record) error {
	return b.PutBatch(ctx, []core.Record{rec})
}

// PutBatch implements core.Batcher. Either every record is stored or none.
func (b *Backend) PutBatch(ctx context.Context, recs []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return core.ErrClosed
	}

	if b.quota > 0 {
		usage := b.usageLocked()
		for _, r := range recs {
			if old, ok := b.records[r.Key]; ok {
				usage -= int64(old.Size())
			}
			usage += int64(r.Size())
		}
		if usage > b.quota {
			return core.NewError("", "", core.ReasonQuotaExceeded,
				fmt.Errorf("%d bytes needed, quota is %d", usage, b.quota))
		}
	}

	for _, r := range recs {
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		r.Data = data
		b.records[r.Key] = r
	}
	return nil
}

// Get implements core.Backend.
func (b *Backend) Get(ctx context.Context, key string) (core.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return core.Record{}, core.ErrClosed
	}
	r, ok := b.records[key]
	if !ok {
		return core.Record{}, core.ErrNotFound
	}
	return r, nil
}

// Delete implements core.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return core.ErrClosed
	}
	delete(b.records, key)
	return nil
}

// Clear implements core.Backend.
func (b *Backend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return core.ErrClosed
	}
	b.records = make(map[string]core.Record)
	return nil
}

// All implements core.Backend.
func (b *Backend) All(ctx context.Context) ([]core.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, core.ErrClosed
	}
	out := make([]core.Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r)
	}
	return out, nil
}

// Estimate implements core.Estimator.
func (b *Backend) Estimate(ctx context.Context) (core.Estimate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.Estimate{Quota: b.quota, Usage: b.usageLocked()}, nil
}

func (b *Backend) usageLocked() int64 {
	var usage int64
	for _, r := range b.records {
		usage += int64(r.Size())
	}
	return usage
}

// Close implements core.Backend. Records survive a Close.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "memory"
}

var (
	_ core.Backend   = (*Backend)(nil)
	_ core.Batcher   = (*Backend)(nil)
	_ core.Estimator = (*Backend)(nil)
)
