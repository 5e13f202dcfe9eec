package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/internal/platform"
	"github.com/aretw0/productbaker/pkg/adapters/fs"
	"github.com/aretw0/productbaker/pkg/adapters/instrument"
	"github.com/aretw0/productbaker/pkg/adapters/memory"
	"github.com/aretw0/productbaker/pkg/adapters/redis"
	"github.com/aretw0/productbaker/pkg/adapters/sqlite"
	"github.com/aretw0/productbaker/pkg/core"
)

func TestNewDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()
	store, err := platform.New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	b, ok := store.Backend().(*sqlite.Backend)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, ".productbaker", platform.DatabaseFile), b.Path())

	require.NoError(t, store.Save(context.Background(), "k", "v"))
	_, err = os.Stat(b.Path())
	assert.NoError(t, err)
}

func TestInitAdapters(t *testing.T) {
	dir := t.TempDir()

	backend, err := platform.Init(dir, platform.WithAdapter("fs"), platform.WithFormat("yaml"))
	require.NoError(t, err)
	repo, ok := backend.(*fs.Repository)
	require.True(t, ok)
	assert.Equal(t, dir, repo.Path)

	backend, err = platform.Init("", platform.WithAdapter("memory"))
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, backend)

	backend, err = platform.Init(sqlite.MemoryPath)
	require.NoError(t, err)
	assert.Equal(t, sqlite.MemoryPath, backend.(*sqlite.Backend).Path())

	backend, err = platform.Init("team-a", platform.WithAdapter("redis"), platform.WithRedisURL("redis://localhost:6379/0"))
	require.NoError(t, err)
	assert.IsType(t, &redis.Backend{}, backend)

	_, err = platform.Init("", platform.WithAdapter("redis"))
	assert.Error(t, err)

	_, err = platform.Init(dir, platform.WithAdapter("fs"), platform.WithFormat("toml"))
	assert.Error(t, err)

	_, err = platform.Init(dir, platform.WithAdapter("dynamo"))
	assert.ErrorContains(t, err, "unknown adapter")
}

func TestForceTempReRootsPath(t *testing.T) {
	backend, err := platform.Init("relative-store", platform.WithAdapter("fs"), platform.WithForceTemp(true))
	require.NoError(t, err)
	repo := backend.(*fs.Repository)
	assert.Equal(t, platform.ResolveStorePath("relative-store", true), repo.Path)
	assert.NotEqual(t, "relative-store", repo.Path)
}

func TestReadOnlyBypassesSandbox(t *testing.T) {
	backend, err := platform.Init("relative-store", platform.WithAdapter("fs"), platform.WithReadOnly(true))
	require.NoError(t, err)
	assert.Equal(t, "relative-store", backend.(*fs.Repository).Path)
}

func TestWithBackendAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mem := memory.New()
	store, err := platform.New("ignored",
		platform.WithBackend(mem),
		platform.WithMetrics(reg),
		platform.WithAtomicRestore(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	wrapped, ok := store.Backend().(*instrument.Backend)
	require.True(t, ok)
	assert.Same(t, mem, wrapped.Unwrap())

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, core.KeyCustomTags, []string{"a"}))
	_, err = store.Load(ctx, core.KeyCustomTags)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "productbaker_store_operations_total")
	require.NoError(t, err)
	assert.Positive(t, count)

	_, err = platform.New("ignored", platform.WithBackend(memory.New()), platform.WithMetrics(reg))
	assert.Error(t, err, "collectors are already registered")
}
