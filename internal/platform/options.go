package platform

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/productbaker/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterSQLite = "sqlite"
	AdapterFS     = "fs"
	AdapterMemory = "memory"
	AdapterRedis  = "redis"
)

// options holds the internal configuration for a ProductBaker store.
type options struct {
	backend     core.Backend
	logger      *slog.Logger
	adapter     string
	systemDir   string
	format      string
	redisURL    string
	quota       int64
	readOnly    bool
	devSafety   bool
	forceTemp   bool
	lockTimeout time.Duration
	registerer  prometheus.Registerer

	store core.Config

	watcherErrorHandler func(error)
}

// Option defines a functional option for configuring a store.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   AdapterSQLite,
		devSafety: true,
		format:    "json",
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.store.Logger = o.logger
	return o
}

// WithLogger sets the logger for the store and its backend.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBackend injects a ready-made backend (e.g. a fake). The adapter
// name and path are then ignored.
func WithBackend(backend core.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithAdapter selects the storage adapter by name. Defaults to "sqlite".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the hidden directory holding the database, lock and
// version files. Defaults to ".productbaker".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithFormat sets the record file format of the fs adapter ("json" or "yaml").
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithRedisURL sets the server of the redis adapter. When set, the path
// argument of New is used as the redis namespace.
func WithRedisURL(url string) Option {
	return func(o *options) {
		o.redisURL = url
	}
}

// WithQuota caps the backend size in bytes. Zero means unlimited.
func WithQuota(bytes int64) Option {
	return func(o *options) {
		o.quota = bytes
	}
}

// WithReadOnly enables read-only mode.
// In this mode:
// 1. Writes fail with an AccessDenied storage error.
// 2. Directories are not created.
// 3. Dev Safety (go run temp dir) is BYPASSED (uses real path).
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the store is re-rooted into a temporary
// directory so development runs never touch real data.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithLockTimeout sets how long writers wait for the store lock: the fs
// lock file or the sqlite busy timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithEventBuffer sets the per-subscriber buffer of Watch.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.store.EventBuffer = size
	}
}

// WithDateRevival toggles the ISO-8601 string upgrade performed by Load.
// Enabled by default.
func WithDateRevival(enabled bool) Option {
	return func(o *options) {
		o.store.DisableDateRevival = !enabled
	}
}

// WithAtomicRestore makes Restore all-or-nothing on backends that support batches.
func WithAtomicRestore(enabled bool) Option {
	return func(o *options) {
		o.store.AtomicRestore = enabled
	}
}

// WithPersistOnOpen requests persistent storage in the background after the first open.
func WithPersistOnOpen(enabled bool) Option {
	return func(o *options) {
		o.store.PersistOnOpen = enabled
	}
}

// WithBackupKeys overrides the keys included in backups.
func WithBackupKeys(keys ...string) Option {
	return func(o *options) {
		o.store.BackupKeys = keys
	}
}

// WithMetrics records backend operations on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithWatcherErrorHandler registers a callback for errors in the fs watch
// loop, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.watcherErrorHandler = fn
	}
}
