package fs_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/adapters/fs"
	"github.com/aretw0/productbaker/pkg/core"
)

func openRepo(t *testing.T, cfg fs.Config) *fs.Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	repo, err := fs.NewRepository(cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Open(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func rec(key, data string) core.Record {
	return core.Record{Key: key, Data: json.RawMessage(data), Timestamp: time.Now().UnixMilli()}
}

func TestNewRepositoryRejectsUnknownFormat(t *testing.T) {
	_, err := fs.NewRepository(fs.Config{Path: t.TempDir(), Format: "toml"})
	assert.Error(t, err)
}

func TestRepositoryCRUD(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			repo := openRepo(t, fs.Config{Path: dir, Format: format})
			ctx := context.Background()

			_, err := repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrNotFound)

			doc := `{"name":"Foo","createdAt":"2024-01-01T00:00:00Z","tags":["a","b"],"n":3}`
			require.NoError(t, repo.Put(ctx, rec("app/products", doc)))
			require.NoError(t, repo.Put(ctx, rec("other", `"x"`)))

			got, err := repo.Get(ctx, "app/products")
			require.NoError(t, err)
			assert.Equal(t, "app/products", got.Key)
			assert.JSONEq(t, doc, string(got.Data))

			_, err = os.Stat(filepath.Join(dir, "app%2Fproducts."+format))
			require.NoError(t, err, "key is escaped into a single file name")

			all, err := repo.All(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, repo.Delete(ctx, "other"))
			require.NoError(t, repo.Delete(ctx, "other"))
			require.NoError(t, repo.Clear(ctx))

			all, err = repo.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			_, err = os.Stat(filepath.Join(dir, ".productbaker", "version"))
			assert.NoError(t, err, "clear keeps the system dir")
		})
	}
}

func TestRepositoryIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	repo := openRepo(t, fs.Config{Path: dir})
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fs.TempFilePrefix+"123"), []byte("{}"), 0644))
	require.NoError(t, repo.Put(ctx, rec("k", `1`)))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "k", all[0].Key)
}

func TestRepositoryClosed(t *testing.T) {
	repo := openRepo(t, fs.Config{})
	ctx := context.Background()
	require.NoError(t, repo.Close())

	assert.ErrorIs(t, repo.Put(ctx, rec("k", `1`)), core.ErrClosed)
	_, err := repo.All(ctx)
	assert.ErrorIs(t, err, core.ErrClosed)
}

func TestRepositoryVersionConflict(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".productbaker"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".productbaker", "version"), []byte("9\n"), 0644))

	repo, err := fs.NewRepository(fs.Config{Path: dir})
	require.NoError(t, err)
	err = repo.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
}

func TestRepositoryLockTimeout(t *testing.T) {
	dir := t.TempDir()
	repo := openRepo(t, fs.Config{Path: dir, LockTimeout: 50 * time.Millisecond})

	lockPath := filepath.Join(dir, ".productbaker", "store.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("4242\n"), 0644))

	err := repo.Put(context.Background(), rec("k", `1`))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBlocked)

	require.NoError(t, os.Remove(lockPath))
	require.NoError(t, repo.Put(context.Background(), rec("k", `1`)))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock is released after the write")
}

func TestRepositoryQuota(t *testing.T) {
	repo := openRepo(t, fs.Config{Quota: 200})
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, rec("small", `"v"`)))
	err := repo.Put(ctx, rec("big", `"`+strings.Repeat("x", 500)+`"`))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)

	err = repo.PutBatch(ctx, []core.Record{rec("a", `1`), rec("big", `"`+strings.Repeat("x", 500)+`"`)})
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound, "failed batch writes nothing")

	est, err := repo.Estimate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), est.Quota)
	assert.Positive(t, est.Usage)
	assert.LessOrEqual(t, est.Usage, int64(200))
}

func TestRepositoryPutBatch(t *testing.T) {
	repo := openRepo(t, fs.Config{})
	ctx := context.Background()

	require.NoError(t, repo.PutBatch(ctx, []core.Record{rec("a", `1`), rec("b", `2`), rec("a", `3`)}))
	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", string(got.Data))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepositoryReadOnly(t *testing.T) {
	dir := t.TempDir()
	writable := openRepo(t, fs.Config{Path: dir})
	require.NoError(t, writable.Put(context.Background(), rec("k", `"v"`)))

	repo := openRepo(t, fs.Config{Path: dir, ReadOnly: true})
	ctx := context.Background()

	assert.ErrorIs(t, repo.Put(ctx, rec("k", `"w"`)), core.ErrReadOnly)
	assert.ErrorIs(t, repo.Delete(ctx, "k"), core.ErrReadOnly)
	assert.ErrorIs(t, repo.Clear(ctx), core.ErrReadOnly)

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(got.Data))

	state := repo.State().(fs.RepositoryState)
	assert.True(t, state.ReadOnly)
	assert.Equal(t, "fs", repo.ComponentType())
}

func TestRepositoryReadOnlyMissingDir(t *testing.T) {
	repo := openRepo(t, fs.Config{Path: filepath.Join(t.TempDir(), "absent"), ReadOnly: true})
	all, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepositoryPersistence(t *testing.T) {
	repo := openRepo(t, fs.Config{})
	ctx := context.Background()

	store := core.NewStore(repo, core.Config{})
	status := store.CheckPersistentStorage(ctx)
	assert.True(t, status.Supported)
	assert.True(t, status.Granted)
	assert.True(t, store.RequestPersistentStorage(ctx).Granted)
}

func TestRepositoryWatch(t *testing.T) {
	dir := t.TempDir()
	repo := openRepo(t, fs.Config{Path: dir})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := repo.Watch(ctx, "app_*")
	require.NoError(t, err)

	// a second handle on the same directory stands in for another process
	other := openRepo(t, fs.Config{Path: dir})
	require.NoError(t, other.Put(ctx, rec("scratch", `1`)))
	require.NoError(t, other.Put(ctx, rec(core.KeyProducts, `[]`)))

	select {
	case e := <-events:
		assert.Equal(t, core.EventSave, e.Type)
		assert.Equal(t, core.KeyProducts, e.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for save event")
	}

	require.NoError(t, other.Delete(ctx, core.KeyProducts))
	select {
	case e := <-events:
		assert.Equal(t, core.EventRemove, e.Type)
		assert.Equal(t, core.KeyProducts, e.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remove event")
	}

	assert.Equal(t, 1, repo.State().(fs.RepositoryState).Watchers)
	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return repo.State().(fs.RepositoryState).Watchers == 0
	}, time.Second, 10*time.Millisecond)
}
