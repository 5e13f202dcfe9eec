package productbaker

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/productbaker/internal/platform"
	"github.com/aretw0/productbaker/pkg/catalog"
	"github.com/aretw0/productbaker/pkg/core"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Store is the durable key → JSON document store.
type Store = core.Store

// Record is a stored document with its key and write time.
type Record = core.Record

// Stats describes the size of a store.
type Stats = core.Stats

// Event is a change notification delivered by Watch.
type Event = core.Event

// StorageError is the typed error returned by store operations.
type StorageError = core.StorageError

// Catalog bundles the domain managers.
type Catalog = catalog.Catalog

// --- Configuration ---

// Option defines a functional option for configuring a store.
type Option = platform.Option

// WithLogger sets the logger for the store and its backend.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithBackend injects a custom backend (e.g. a fake).
func WithBackend(backend core.Backend) Option {
	return platform.WithBackend(backend)
}

// WithAdapter selects the storage adapter by name: sqlite (default), fs, memory or redis.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the hidden directory name (default ".productbaker").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithFormat sets the record file format of the fs adapter.
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithRedisURL sets the server of the redis adapter.
func WithRedisURL(url string) Option {
	return platform.WithRedisURL(url)
}

// WithQuota caps the backend size in bytes.
func WithQuota(bytes int64) Option {
	return platform.WithQuota(bytes)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the temp-dir sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithLockTimeout sets how long writers wait for the store lock: the fs
// lock file or the sqlite busy timeout.
func WithLockTimeout(d time.Duration) Option {
	return platform.WithLockTimeout(d)
}

// WithEventBuffer sets the per-subscriber buffer of Watch.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithDateRevival toggles the ISO-8601 string upgrade performed by Load.
func WithDateRevival(enabled bool) Option {
	return platform.WithDateRevival(enabled)
}

// WithAtomicRestore makes Restore all-or-nothing where supported.
func WithAtomicRestore(enabled bool) Option {
	return platform.WithAtomicRestore(enabled)
}

// WithPersistOnOpen requests persistent storage after the first open.
func WithPersistOnOpen(enabled bool) Option {
	return platform.WithPersistOnOpen(enabled)
}

// WithBackupKeys overrides the keys included in backups.
func WithBackupKeys(keys ...string) Option {
	return platform.WithBackupKeys(keys...)
}

// WithMetrics records backend operations on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return platform.WithMetrics(reg)
}

// WithWatcherErrorHandler receives errors from the fs watch loop.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a Store. Nothing is opened until the first operation.
func New(path string, opts ...Option) (*Store, error) {
	return platform.New(path, opts...)
}

// Init builds the configured backend without wrapping it in a Store.
func Init(path string, opts ...Option) (core.Backend, error) {
	return platform.Init(path, opts...)
}

// NewCatalog creates the domain managers over store.
func NewCatalog(store *Store, logger *slog.Logger) *Catalog {
	return catalog.New(store, catalog.WithLogger(logger))
}

// OpenCatalog creates a store at path and the managers over it.
func OpenCatalog(path string, opts ...Option) (*Store, *Catalog, error) {
	store, err := New(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, catalog.New(store), nil
}

// --- Safety & Utils ---

// ResolveStorePath determines the actual store directory based on safety rules.
func ResolveStorePath(userPath string, forceTemp bool) string {
	return platform.ResolveStorePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindStoreRoot looks upwards for a directory holding a store.
func FindStoreRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
