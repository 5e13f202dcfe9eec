package platform

import (
	"fmt"
	"path/filepath"

	"github.com/aretw0/productbaker/pkg/adapters/fs"
	"github.com/aretw0/productbaker/pkg/adapters/memory"
	"github.com/aretw0/productbaker/pkg/adapters/redis"
	"github.com/aretw0/productbaker/pkg/adapters/sqlite"
	"github.com/aretw0/productbaker/pkg/core"
)

// DatabaseFile is the sqlite database name inside the system directory.
const DatabaseFile = "store.db"

func initBackend(uri string, o *options) (core.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}

	switch o.adapter {
	case AdapterSQLite:
		return initSQLite(uri, o), nil
	case AdapterFS:
		return initFS(uri, o)
	case AdapterMemory:
		return memory.New(memory.WithQuota(o.quota)), nil
	case AdapterRedis:
		return initRedis(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

func (o *options) systemDirName() string {
	if o.systemDir == "" {
		return fs.DefaultSystemDir
	}
	return o.systemDir
}

// resolvePath applies the dev safety rules to a store directory.
func resolvePath(path string, o *options) string {
	// Read-only access is inherently safe.
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	resolved := ResolveStorePath(path, useTemp)

	if o.logger != nil && IsDevRun() {
		switch {
		case o.readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if o.logger != nil && useTemp && resolved != path {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

// initSQLite places the database in the system directory of uri.
// sqlite.MemoryPath is passed through.
func initSQLite(uri string, o *options) core.Backend {
	dbPath := sqlite.MemoryPath
	if uri != sqlite.MemoryPath {
		dbPath = filepath.Join(resolvePath(uri, o), o.systemDirName(), DatabaseFile)
	}
	return sqlite.New(dbPath,
		sqlite.WithQuota(o.quota),
		sqlite.WithReadOnly(o.readOnly),
		sqlite.WithBusyTimeout(o.lockTimeout),
		sqlite.WithLogger(o.logger),
	)
}

func initFS(uri string, o *options) (core.Backend, error) {
	repo, err := fs.NewRepository(fs.Config{
		Path:         resolvePath(uri, o),
		SystemDir:    o.systemDirName(),
		Format:       o.format,
		Quota:        o.quota,
		ReadOnly:     o.readOnly,
		LockTimeout:  o.lockTimeout,
		Logger:       o.logger,
		ErrorHandler: o.watcherErrorHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("fs adapter: %w", err)
	}
	return repo, nil
}

// initRedis uses uri as the namespace when a server URL is configured,
// and as the server URL otherwise.
func initRedis(uri string, o *options) (core.Backend, error) {
	url, namespace := o.redisURL, uri
	if url == "" {
		url, namespace = uri, ""
	}
	if url == "" {
		return nil, fmt.Errorf("redis adapter: server URL is required")
	}
	ropts := []redis.Option{
		redis.WithQuota(o.quota),
		redis.WithReadOnly(o.readOnly),
		redis.WithLogger(o.logger),
	}
	if namespace != "" && namespace != "." {
		ropts = append(ropts, redis.WithNamespace(namespace))
	}
	backend, err := redis.New(url, ropts...)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: %w", err)
	}
	return backend, nil
}
