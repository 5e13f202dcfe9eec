package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noWatchBackend has no Watch capability, so Store.Watch uses the broker.
type noWatchBackend struct{ Backend }

func (noWatchBackend) Open(context.Context) error { return nil }
func (noWatchBackend) Close() error { return nil }

func TestWatchEndsWhenStoreCloses(t *testing.T) {
	store := NewStore(noWatchBackend{}, Config{})

	events, err := store.Watch(context.Background(), "*")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, ok := <-events
	assert.False(t, ok, "subscriber channel is closed")

	stopped := make(chan struct{})
	go func() {
		store.watches.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("watch goroutine outlived Close")
	}
}

func TestWatchEndsWithContext(t *testing.T) {
	store := NewStore(noWatchBackend{}, Config{})
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	events, err := store.Watch(ctx, "*")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed after cancel")
	}
	assert.Equal(t, 0, store.broker.len())
}
