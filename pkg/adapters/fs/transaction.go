package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/productbaker/pkg/core"
)

// transaction stages record writes and applies them under the store lock.
//
// Every file is written and synced to a temp file before the first rename,
// so serialization, quota and disk-full failures leave the store untouched.
// Only a failing rename, after the first one succeeded, applies part of it.
type transaction struct {
	repo   *Repository
	staged map[string][]byte // full path -> file contents
	mu     sync.Mutex
	closed bool
}

func newTransaction(repo *Repository) *transaction {
	return &transaction{
		repo:   repo,
		staged: make(map[string][]byte),
	}
}

// stage serializes rec for the commit. Later stages of the same key win.
func (t *transaction) stage(rec core.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transaction closed")
	}
	data, err := t.repo.serializer.Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", rec.Key, err)
	}
	t.staged[t.repo.fileFor(rec.Key)] = data
	return nil
}

// commit applies all staged writes.
func (t *transaction) commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	t.closed = true

	unlock, err := t.repo.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	sizes := make(map[string]int64, len(t.staged))
	for path, data := range t.staged {
		sizes[path] = int64(len(data))
	}
	if err := t.repo.checkQuota(sizes); err != nil {
		return err
	}

	temps := make(map[string]string, len(t.staged))
	cleanup := func() {
		for _, tmp := range temps {
			os.Remove(tmp)
		}
	}
	for path, data := range t.staged {
		tmp, err := writeTemp(filepath.Dir(path), data, 0644)
		if err != nil {
			cleanup()
			return classifyFS(err)
		}
		temps[path] = tmp
	}

	for path, tmp := range temps {
		if err := os.Rename(tmp, path); err != nil {
			cleanup()
			return classifyFS(fmt.Errorf("failed to rename temp file to %s: %w", path, err))
		}
		delete(temps, path)
	}
	return nil
}

// rollback discards all staged changes.
func (t *transaction) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged = nil
	t.closed = true
}

// PutBatch implements core.Batcher.
func (r *Repository) PutBatch(ctx context.Context, recs []core.Record) error {
	if err := r.checkWrite(); err != nil {
		return err
	}
	tx := newTransaction(r)
	for _, rec := range recs {
		if err := tx.stage(rec); err != nil {
			tx.rollback()
			return err
		}
	}
	return tx.commit(ctx)
}
