package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/core"
)

func TestWatchWorkerState(t *testing.T) {
	repo, err := NewRepository(Config{Path: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, repo.Open(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })

	w := newWatchWorker(repo, "product*", make(chan core.Event, 1))
	assert.Equal(t, worker.StatusCreated, w.State().Status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	state := w.State()
	assert.Equal(t, worker.StatusRunning, state.Status)
	assert.Equal(t, string(worker.TypeGoroutine), state.Metadata[worker.MetadataType])
	assert.Equal(t, "product*", state.Metadata["pattern"])

	assert.Error(t, w.Start(ctx), "a running worker cannot be started twice")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, w.Stop(stopCtx))
}

func TestWatchWorkerRestartedBySupervisor(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewRepository(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, repo.Open(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan core.Event, 10)
	created := make(chan *watchWorker, 2)

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := newWatchWorker(repo, "*", events)
			created <- w
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      1,
			ResetDuration:   50 * time.Millisecond,
			MaxRestarts:     2,
			MaxDuration:     time.Second,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("test-watcher", supervisor.StrategyOneForOne, spec)
	require.NoError(t, sup.Start(ctx))

	first := receiveWorker(t, created)
	require.Eventually(t, func() bool {
		return first.State().Status == worker.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	// Closing the fsnotify watcher ends the loop with an error.
	_ = first.watcher.Close()

	second := receiveWorker(t, created)
	assert.NotSame(t, first, second)
	require.Eventually(t, func() bool {
		return second.State().Status == worker.StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	// The replacement keeps feeding the shared channel.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.json"), []byte(`[]`), 0644))
	select {
	case e := <-events:
		assert.Equal(t, "products", e.Key)
		assert.Equal(t, core.EventSave, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event from restarted watcher")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, sup.Stop(stopCtx))
}

func receiveWorker(t *testing.T, ch <-chan *watchWorker) *watchWorker {
	t.Helper()
	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watcher worker")
		return nil
	}
}
