package fs_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/adapters/fs"
	"github.com/aretw0/productbaker/pkg/core"
)

// TestConcurrencyExternalVsInternal runs store writes and a watcher while
// another actor scribbles foreign files into the same directory. The store
// must not panic and must still list only its own, valid records.
func TestConcurrencyExternalVsInternal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	dir := t.TempDir()
	repo, err := fs.NewRepository(fs.Config{Path: dir})
	require.NoError(t, err)
	store := core.NewStore(repo, core.Config{})
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			name := fmt.Sprintf("noise-%d.txt", rand.Intn(10))
			_ = os.WriteFile(filepath.Join(dir, name), []byte(time.Now().String()), 0644)
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			key := fmt.Sprintf("data-%d", rand.Intn(10))
			// Errors are tolerated under contention; panics are not.
			_ = store.Save(context.Background(), key, map[string]any{"ts": time.Now().UnixNano()})
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		}
	}()

	stream, err := store.Watch(ctx, "*")
	require.NoError(t, err)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range stream {
		}
	}()

	wg.Wait()

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	for _, key := range keys {
		_, err := store.Load(context.Background(), key)
		require.NoError(t, err, key)
	}
	t.Logf("survived with %d keys", len(keys))
}
