// Package sqlite implements core.Backend on a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/productbaker/pkg/core"
)

// SchemaVersion is the value of PRAGMA user_version written by this package.
const SchemaVersion = 1

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// PageSize is the page size of databases created by this package. Quotas
// are converted to a page count with it.
const PageSize = 4096

// DefaultBusyTimeout is how long a write waits for another connection's lock.
const DefaultBusyTimeout = 5 * time.Second

//go:embed schema.sql
var schemaSQL string

// Backend stores records in the "records" table of a SQLite database.
type Backend struct {
	path     string
	quota    int64
	readOnly bool
	busy     time.Duration
	logger   *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// Option configures a Backend.
type Option func(*Backend)

// WithQuota caps the database size in bytes through max_page_count.
func WithQuota(bytes int64) Option {
	return func(b *Backend) {
		b.quota = bytes
	}
}

// WithReadOnly rejects every write with core.ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(b *Backend) {
		b.readOnly = readOnly
	}
}

// WithBusyTimeout sets how long writes wait on a locked database before
// failing with core.ErrBlocked.
func WithBusyTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.busy = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New creates a Backend for the database at path. Nothing is opened until Open.
func New(path string, opts ...Option) *Backend {
	b := &Backend{path: path, busy: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b
}

// Path returns the database path.
func (b *Backend) Path() string {
	return b.path
}

// Open connects to the database and creates the records table when missing.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}

	path := strings.TrimSpace(b.path)
	if path == "" {
		return core.NewError("", "", core.ReasonUnavailable, fmt.Errorf("storage path is required"))
	}
	if path != MemoryPath {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return classifyFS(err)
		}
	}

	queryOnly := b.readOnly && path != MemoryPath
	if queryOnly {
		// the schema is created through a writable handle first
		db, err := b.connect(ctx, path, false)
		if err != nil {
			return err
		}
		_ = db.Close()
	}
	db, err := b.connect(ctx, path, queryOnly)
	if err != nil {
		return err
	}
	if b.readOnly && !queryOnly {
		// an in-memory database lives on its single connection
		if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			_ = db.Close()
			return fmt.Errorf("set query_only: %w", classify(err))
		}
	}

	b.db = db
	b.logger.Debug("sqlite store opened", "path", path)
	return nil
}

// connect opens path, checks the connection and migrates the schema.
func (b *Backend) connect(ctx context.Context, path string, queryOnly bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?"+b.pragmas(queryOnly))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection: the in-memory database and per-connection pragmas
	// must not be split across a pool
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", classify(err))
	}
	if err := b.migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrate creates the schema on a fresh database and refuses newer ones.
func (b *Backend) migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", classify(err))
	}
	switch {
	case version > SchemaVersion:
		return core.NewError("", "", core.ReasonVersionConflict,
			fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion))
	case version == SchemaVersion:
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", classify(err))
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create schema: %w", classify(err))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set schema version: %w", classify(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", classify(err))
	}
	b.logger.Info("sqlite schema created", "version", SchemaVersion)
	return nil
}

// pragmas builds the DSN query. The driver applies every _pragma on each new
// connection, so the limits survive a reconnect.
func (b *Backend) pragmas(queryOnly bool) string {
	q := url.Values{}
	add := func(p string) { q.Add("_pragma", p) }
	add(fmt.Sprintf("page_size(%d)", PageSize))
	add("journal_mode(WAL)")
	add("foreign_keys(ON)")
	add(fmt.Sprintf("busy_timeout(%d)", b.busy.Milliseconds()))
	add("synchronous(NORMAL)")
	if b.quota > 0 {
		add(fmt.Sprintf("max_page_count(%d)", max(b.quota/PageSize, 1)))
	}
	if queryOnly {
		add("query_only(ON)")
	}
	return q.Encode()
}

func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, core.ErrClosed
	}
	return b.db, nil
}

func (b *Backend) writer() (*sql.DB, error) {
	if b.readOnly {
		return nil, core.ErrReadOnly
	}
	return b.conn()
}

const upsertSQL = `INSERT INTO records (key, data, timestamp) VALUES (?, ?, ?)
 ON CONFLICT(key) DO UPDATE SET
    data = excluded.data,
    timestamp = excluded.timestamp`

// Put implements core.Backend.
func (b *Backend) Put(ctx context.Context, rec core.Record) error {
	db, err := b.writer()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, upsertSQL, rec.Key, string(rec.Data), rec.Timestamp); err != nil {
		return classify(err)
	}
	return nil
}

// PutBatch implements core.Batcher in a single transaction.
func (b *Backend) PutBatch(ctx context.Context, recs []core.Record) error {
	db, err := b.writer()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.Key, string(rec.Data), rec.Timestamp); err != nil {
			_ = tx.Rollback()
			return classify(err)
		}
	}
	return classify(tx.Commit())
}

// Get implements core.Backend.
func (b *Backend) Get(ctx context.Context, key string) (core.Record, error) {
	db, err := b.conn()
	if err != nil {
		return core.Record{}, err
	}
	var (
		rec  core.Record
		data string
	)
	err = db.QueryRowContext(ctx, `SELECT key, data, timestamp FROM records WHERE key = ?`, key).
		Scan(&rec.Key, &data, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, classify(err)
	}
	rec.Data = json.RawMessage(data)
	return rec, nil
}

// Delete implements core.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	db, err := b.writer()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return classify(err)
	}
	return nil
}

// Clear implements core.Backend.
func (b *Backend) Clear(ctx context.Context) error {
	db, err := b.writer()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return classify(err)
	}
	return nil
}

// All implements core.Backend.
func (b *Backend) All(ctx context.Context) ([]core.Record, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, data, timestamp FROM records ORDER BY key`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var recs []core.Record
	for rows.Next() {
		var (
			rec  core.Record
			data string
		)
		if err := rows.Scan(&rec.Key, &data, &rec.Timestamp); err != nil {
			return nil, classify(err)
		}
		rec.Data = json.RawMessage(data)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return recs, nil
}

// Estimate implements core.Estimator. Usage is the database size in pages.
func (b *Backend) Estimate(ctx context.Context) (core.Estimate, error) {
	db, err := b.conn()
	if err != nil {
		return core.Estimate{}, err
	}
	pageSize, err := pragmaInt(ctx, db, "page_size")
	if err != nil {
		return core.Estimate{}, err
	}
	pageCount, err := pragmaInt(ctx, db, "page_count")
	if err != nil {
		return core.Estimate{}, err
	}
	return core.Estimate{Quota: b.quota, Usage: pageSize * pageCount}, nil
}

// Persisted implements core.Persister: storage is persistent once commits
// are fully synced to disk.
func (b *Backend) Persisted(ctx context.Context) (bool, error) {
	db, err := b.conn()
	if err != nil {
		return false, err
	}
	if b.path == MemoryPath {
		return false, nil
	}
	level, err := pragmaInt(ctx, db, "synchronous")
	if err != nil {
		return false, err
	}
	return level >= 2, nil
}

// Persist implements core.Persister by switching to synchronous=FULL.
// An in-memory database is never persistent.
func (b *Backend) Persist(ctx context.Context) (bool, error) {
	db, err := b.conn()
	if err != nil {
		return false, err
	}
	if b.path == MemoryPath {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = FULL"); err != nil {
		return false, classify(err)
	}
	return b.Persisted(ctx)
}

// Close implements core.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "sqlite"
}

func pragmaInt(ctx context.Context, db *sql.DB, name string) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&v); err != nil {
		return 0, fmt.Errorf("read %s: %w", name, classify(err))
	}
	return v, nil
}

func classifyFS(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return core.NewError("", "", core.ReasonAccessDenied, err)
	}
	return err
}

var (
	_ core.Backend   = (*Backend)(nil)
	_ core.Batcher   = (*Backend)(nil)
	_ core.Estimator = (*Backend)(nil)
	_ core.Persister = (*Backend)(nil)
)
