// Package fs implements core.Backend with one file per record.
//
// Layout of a store directory:
//
//	<path>/<escaped-key>.json      one record envelope per key (or .yaml)
//	<path>/.productbaker/version   layout version
//	<path>/.productbaker/store.lock  cross-process writer lock
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
)

// LayoutVersion is the on-disk layout written by this package.
const LayoutVersion = 1

// DefaultSystemDir holds the version and lock files.
const DefaultSystemDir = ".productbaker"

// Repository implements core.Backend using the filesystem.
type Repository struct {
	Path       string
	config     Config
	serializer Serializer
	lock       lockFile

	mu        sync.RWMutex
	open      bool
	watchers  int
	lastEvent *time.Time
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path        string
	SystemDir   string // e.g. ".productbaker"
	Format      string // "json" (default) or "yaml"
	Quota       int64  // bytes; zero disables the limit
	ReadOnly    bool
	LockTimeout time.Duration // how long writers wait for the lock; default 5s
	Logger      *slog.Logger
	// ErrorHandler receives watcher failures that cannot be returned to a caller.
	ErrorHandler func(error)
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) (*Repository, error) {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Format == "" {
		config.Format = "json"
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	serializer, ok := DefaultSerializers()[config.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", config.Format)
	}

	return &Repository{
		Path:       config.Path,
		config:     config,
		serializer: serializer,
		lock: lockFile{
			path:    filepath.Join(config.Path, config.SystemDir, "store.lock"),
			timeout: config.LockTimeout,
			stale:   time.Minute,
		},
	}, nil
}

// Open prepares the directory and checks the layout version.
func (r *Repository) Open(ctx context.Context) error {
	if strings.TrimSpace(r.Path) == "" {
		return core.NewError("", "", core.ReasonUnavailable, fmt.Errorf("storage path is required"))
	}

	if !r.config.ReadOnly {
		if err := os.MkdirAll(filepath.Join(r.Path, r.config.SystemDir), 0755); err != nil {
			return classifyFS(fmt.Errorf("failed to create store directory: %w", err))
		}
	}
	if err := r.checkVersion(); err != nil {
		return err
	}

	r.mu.Lock()
	r.open = true
	r.mu.Unlock()
	r.config.Logger.Debug("fs store opened", "path", r.Path, "format", r.config.Format)
	return nil
}

func (r *Repository) checkVersion() error {
	versionPath := filepath.Join(r.Path, r.config.SystemDir, "version")
	data, err := os.ReadFile(versionPath)
	if errors.Is(err, os.ErrNotExist) {
		if r.config.ReadOnly {
			return nil
		}
		return classifyFS(writeFileAtomic(versionPath, []byte(strconv.Itoa(LayoutVersion)+"\n"), 0644))
	}
	if err != nil {
		return classifyFS(fmt.Errorf("failed to read layout version: %w", err))
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return core.NewError("", "", core.ReasonInvalidState, fmt.Errorf("corrupt layout version %q", data))
	}
	if version > LayoutVersion {
		return core.NewError("", "", core.ReasonVersionConflict,
			fmt.Errorf("store layout version %d is newer than supported version %d", version, LayoutVersion))
	}
	return nil
}

func (r *Repository) isOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open
}

func (r *Repository) checkWrite() error {
	if !r.isOpen() {
		return core.ErrClosed
	}
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	return nil
}

// Put implements core.Backend.
func (r *Repository) Put(ctx context.Context, rec core.Record) error {
	if err := r.checkWrite(); err != nil {
		return err
	}

	data, err := r.serializer.Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	unlock, err := r.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	fullPath := r.fileFor(rec.Key)
	if err := r.checkQuota(map[string]int64{fullPath: int64(len(data))}); err != nil {
		return err
	}
	if err := writeFileAtomic(fullPath, data, 0644); err != nil {
		return classifyFS(fmt.Errorf("failed to write file: %w", err))
	}
	return nil
}

// checkQuota fails when replacing the given files with files of the given
// sizes would exceed the quota. Must hold the lock.
func (r *Repository) checkQuota(sizes map[string]int64) error {
	if r.config.Quota <= 0 {
		return nil
	}
	usage, err := r.usage()
	if err != nil {
		return err
	}
	for path, size := range sizes {
		if info, err := os.Stat(path); err == nil {
			usage -= info.Size()
		}
		usage += size
	}
	if usage > r.config.Quota {
		return core.NewError("", "", core.ReasonQuotaExceeded,
			fmt.Errorf("%d bytes needed, quota is %d", usage, r.config.Quota))
	}
	return nil
}

// Get implements core.Backend.
func (r *Repository) Get(ctx context.Context, key string) (core.Record, error) {
	if !r.isOpen() {
		return core.Record{}, core.ErrClosed
	}
	return r.read(r.fileFor(key), key)
}

func (r *Repository) read(fullPath, key string) (core.Record, error) {
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, classifyFS(err)
	}
	rec, err := r.serializer.Parse(data)
	if err != nil {
		return core.Record{}, core.NewError("", key, core.ReasonInvalidState,
			fmt.Errorf("failed to parse %s: %w", filepath.Base(fullPath), err))
	}
	if rec.Key == "" {
		rec.Key = key
	}
	return rec, nil
}

// Delete implements core.Backend.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if err := r.checkWrite(); err != nil {
		return err
	}
	unlock, err := r.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(r.fileFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return classifyFS(fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

// Clear implements core.Backend.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.checkWrite(); err != nil {
		return err
	}
	unlock, err := r.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	files, err := r.recordFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return classifyFS(fmt.Errorf("failed to delete file: %w", err))
		}
	}
	return nil
}

// All implements core.Backend.
func (r *Repository) All(ctx context.Context) ([]core.Record, error) {
	if !r.isOpen() {
		return nil, core.ErrClosed
	}
	files, err := r.recordFiles()
	if err != nil {
		return nil, err
	}

	recs := make([]core.Record, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.read(f.path, f.key)
		if errors.Is(err, core.ErrNotFound) {
			// removed since the directory was listed
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Estimate implements core.Estimator. Usage is the size of all record files.
func (r *Repository) Estimate(ctx context.Context) (core.Estimate, error) {
	if !r.isOpen() {
		return core.Estimate{}, core.ErrClosed
	}
	usage, err := r.usage()
	if err != nil {
		return core.Estimate{}, err
	}
	return core.Estimate{Quota: r.config.Quota, Usage: usage}, nil
}

// Persisted implements core.Persister. Every write is fsynced before it
// becomes visible, so an open repository is always persistent.
func (r *Repository) Persisted(ctx context.Context) (bool, error) {
	if !r.isOpen() {
		return false, core.ErrClosed
	}
	return true, nil
}

// Persist implements core.Persister.
func (r *Repository) Persist(ctx context.Context) (bool, error) {
	return r.Persisted(ctx)
}

// Close implements core.Backend.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	return nil
}

type recordFile struct {
	path string
	key  string
	size int64
}

// recordFiles lists the record files of the configured format.
// A missing directory is an empty store.
func (r *Repository) recordFiles() ([]recordFile, error) {
	entries, err := os.ReadDir(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyFS(fmt.Errorf("failed to list store directory: %w", err))
	}

	ext := r.serializer.Ext()
	var files []recordFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, TempFilePrefix) || filepath.Ext(name) != ext {
			continue
		}
		key, err := unescapeKey(strings.TrimSuffix(name, ext))
		if err != nil {
			r.config.Logger.Warn("skipping file with invalid name", "file", name, "error", err)
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, recordFile{path: filepath.Join(r.Path, name), key: key, size: info.Size()})
	}
	return files, nil
}

func (r *Repository) usage() (int64, error) {
	files, err := r.recordFiles()
	if err != nil {
		return 0, err
	}
	var usage int64
	for _, f := range files {
		usage += f.size
	}
	return usage, nil
}

func (r *Repository) fileFor(key string) string {
	return filepath.Join(r.Path, escapeKey(key)+r.serializer.Ext())
}

// keyForPath maps a record file path back to its key.
func (r *Repository) keyForPath(path string) (string, bool) {
	if filepath.Dir(path) != filepath.Clean(r.Path) {
		return "", false
	}
	name := filepath.Base(path)
	ext := r.serializer.Ext()
	if strings.HasPrefix(name, TempFilePrefix) || filepath.Ext(name) != ext {
		return "", false
	}
	key, err := unescapeKey(strings.TrimSuffix(name, ext))
	if err != nil {
		return "", false
	}
	return key, true
}

// escapeKey turns an arbitrary key into a portable file name. Letters,
// digits, '-' and '_' are kept; everything else, and a leading '.', is
// percent-encoded.
func escapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		case c == '.' && i > 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func unescapeKey(name string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] != '%' {
			b.WriteByte(name[i])
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("truncated escape in %q", name)
		}
		v, err := strconv.ParseUint(name[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid escape in %q: %w", name, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}

var (
	_ core.Backend   = (*Repository)(nil)
	_ core.Batcher   = (*Repository)(nil)
	_ core.Estimator = (*Repository)(nil)
	_ core.Persister = (*Repository)(nil)
	_ core.Watchable = (*Repository)(nil)
)
