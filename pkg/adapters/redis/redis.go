// Package redis implements core.Backend on a Redis server.
//
// Records of a namespace live in two hashes: <namespace>:records maps key to
// document and <namespace>:timestamps maps key to write time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aretw0/productbaker/pkg/core"
)

// DefaultNamespace prefixes the hashes of a store.
const DefaultNamespace = "productbaker"

// Backend stores records in Redis hashes.
type Backend struct {
	opts      *redis.Options
	namespace string
	quota     int64
	readOnly  bool
	logger    *slog.Logger

	mu     sync.RWMutex
	client *redis.Client
}

// Option configures a Backend.
type Option func(*Backend)

// WithNamespace sets the hash key prefix.
func WithNamespace(ns string) Option {
	return func(b *Backend) {
		b.namespace = ns
	}
}

// WithQuota rejects writes once the namespace uses more than bytes of server memory.
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

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New creates a Backend for the server at url. The URL is parsed with
// redis.ParseURL so it supports redis:// and rediss:// schemes. Nothing is
// connected until Open.
func New(url string, opts ...Option) (*Backend, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	b := &Backend{opts: ropts, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b, nil
}

func (b *Backend) recordsKey() string    { return b.namespace + ":records" }
func (b *Backend) timestampsKey() string { return b.namespace + ":timestamps" }

// Open connects and verifies connectivity.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return nil
	}

	client := redis.NewClient(b.opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connecting to redis: %w", classify(err))
	}

	b.client = client
	b.logger.Debug("redis store opened", "addr", b.opts.Addr, "namespace", b.namespace)
	return nil
}

func (b *Backend) conn() (*redis.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, core.ErrClosed
	}
	return b.client, nil
}

func (b *Backend) writer() (*redis.Client, error) {
	if b.readOnly {
		return nil, core.ErrReadOnly
	}
	return b.conn()
}

// checkQuota rejects recs when storing them would grow usage past the quota.
// Values being replaced are subtracted from the growth.
func (b *Backend) checkQuota(ctx context.Context, client *redis.Client, recs []core.Record) error {
	if b.quota <= 0 {
		return nil
	}
	incoming := make(map[string]int64, len(recs))
	for _, r := range recs {
		incoming[r.Key] = int64(len(r.Data))
	}

	lens := make(map[string]*redis.IntCmd, len(incoming))
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for key := range incoming {
			lens[key] = pipe.HStrLen(ctx, b.recordsKey(), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HSTRLEN: %w", classify(err))
	}
	replaced := make(map[string]int64, len(lens))
	for key, cmd := range lens {
		replaced[key] = cmd.Val()
	}

	grow := growth(incoming, replaced)
	if grow <= 0 {
		return nil
	}
	usage, err := b.usage(ctx, client)
	if err != nil {
		return err
	}
	if usage+grow > b.quota {
		return core.NewError("", "", core.ReasonQuotaExceeded,
			fmt.Errorf("%d bytes needed, quota is %d", usage+grow, b.quota))
	}
	return nil
}

// growth is the net size change of writing incoming over replaced, both keyed
// by record key.
func growth(incoming, replaced map[string]int64) int64 {
	var n int64
	for key, size := range incoming {
		n += size - replaced[key]
	}
	return n
}

// Put implements core.Backend.
func (b *Backend) Put(ctx context.Context, rec core.Record) error {
	return b.PutBatch(ctx, []core.Record{rec})
}

// PutBatch implements core.Batcher with a MULTI/EXEC pipeline.
func (b *Backend) PutBatch(ctx context.Context, recs []core.Record) error {
	client, err := b.writer()
	if err != nil {
		return err
	}
	if err := b.checkQuota(ctx, client, recs); err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range recs {
			pipe.HSet(ctx, b.recordsKey(), r.Key, string(r.Data))
			pipe.HSet(ctx, b.timestampsKey(), r.Key, r.Timestamp)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HSET: %w", classify(err))
	}
	return nil
}

// Get implements core.Backend.
func (b *Backend) Get(ctx context.Context, key string) (core.Record, error) {
	client, err := b.conn()
	if err != nil {
		return core.Record{}, err
	}
	data, err := client.HGet(ctx, b.recordsKey(), key).Result()
	if err == redis.Nil {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("redis HGET %s: %w", key, classify(err))
	}

	rec := core.Record{Key: key, Data: json.RawMessage(data)}
	ts, err := client.HGet(ctx, b.timestampsKey(), key).Result()
	if err != nil && err != redis.Nil {
		return core.Record{}, fmt.Errorf("redis HGET %s: %w", key, classify(err))
	}
	rec.Timestamp, _ = strconv.ParseInt(ts, 10, 64)
	return rec, nil
}

// Delete implements core.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	client, err := b.writer()
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, b.recordsKey(), key)
		pipe.HDel(ctx, b.timestampsKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HDEL %s: %w", key, classify(err))
	}
	return nil
}

// Clear implements core.Backend.
func (b *Backend) Clear(ctx context.Context) error {
	client, err := b.writer()
	if err != nil {
		return err
	}
	if err := client.Del(ctx, b.recordsKey(), b.timestampsKey()).Err(); err != nil {
		return fmt.Errorf("redis DEL: %w", classify(err))
	}
	return nil
}

// All implements core.Backend.
func (b *Backend) All(ctx context.Context) ([]core.Record, error) {
	client, err := b.conn()
	if err != nil {
		return nil, err
	}
	docs, err := client.HGetAll(ctx, b.recordsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL: %w", classify(err))
	}
	stamps, err := client.HGetAll(ctx, b.timestampsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL: %w", classify(err))
	}

	recs := make([]core.Record, 0, len(docs))
	for key, data := range docs {
		ts, _ := strconv.ParseInt(stamps[key], 10, 64)
		recs = append(recs, core.Record{Key: key, Data: json.RawMessage(data), Timestamp: ts})
	}
	return recs, nil
}

// Estimate implements core.Estimator using MEMORY USAGE of the namespace hashes.
func (b *Backend) Estimate(ctx context.Context) (core.Estimate, error) {
	client, err := b.conn()
	if err != nil {
		return core.Estimate{}, err
	}
	usage, err := b.usage(ctx, client)
	if err != nil {
		return core.Estimate{}, err
	}
	return core.Estimate{Quota: b.quota, Usage: usage}, nil
}

func (b *Backend) usage(ctx context.Context, client *redis.Client) (int64, error) {
	var total int64
	for _, key := range []string{b.recordsKey(), b.timestampsKey()} {
		n, err := client.MemoryUsage(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis MEMORY USAGE: %w", classify(err))
		}
		total += n
	}
	return total, nil
}

// Persisted implements core.Persister: the server persists when the
// append-only file is enabled.
func (b *Backend) Persisted(ctx context.Context) (bool, error) {
	client, err := b.conn()
	if err != nil {
		return false, err
	}
	cfg, err := client.ConfigGet(ctx, "appendonly").Result()
	if err != nil {
		return false, fmt.Errorf("redis CONFIG GET: %w", classify(err))
	}
	return cfg["appendonly"] == "yes", nil
}

// Persist implements core.Persister by enabling the append-only file.
// Managed servers usually deny CONFIG SET; the denial is returned.
func (b *Backend) Persist(ctx context.Context) (bool, error) {
	client, err := b.conn()
	if err != nil {
		return false, err
	}
	if err := client.ConfigSet(ctx, "appendonly", "yes").Err(); err != nil {
		return false, fmt.Errorf("redis CONFIG SET: %w", classify(err))
	}
	return b.Persisted(ctx)
}

// Close closes the Redis client connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "redis"
}

// classify maps Redis replies to storage reasons.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrClosed) {
		return core.NewError("", "", core.ReasonInvalidState, err)
	}
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return err
	}
	msg := rerr.Error()
	switch {
	case strings.HasPrefix(msg, "OOM"):
		return core.NewError("", "", core.ReasonQuotaExceeded, err)
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "NOPERM"), strings.HasPrefix(msg, "WRONGPASS"):
		return core.NewError("", "", core.ReasonAccessDenied, err)
	case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "BUSY"):
		return core.NewError("", "", core.ReasonBlocked, err)
	}
	return err
}

var (
	_ core.Backend   = (*Backend)(nil)
	_ core.Batcher   = (*Backend)(nil)
	_ core.Estimator = (*Backend)(nil)
	_ core.Persister = (*Backend)(nil)
)
