// Package instrument decorates a core.Backend with Prometheus metrics.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/productbaker/pkg/core"
)

// Metrics holds the collectors shared by instrumented backends.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productbaker_store_operations_total",
			Help: "Storage backend operations by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "productbaker_store_operation_duration_seconds",
			Help:    "Latency of storage backend operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering store metrics: %w", err)
		}
	}
	return m, nil
}

// Collectors returns the operation counter and the duration histogram.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.duration}
}

// Backend records the outcome and latency of every call to the wrapped backend.
type Backend struct {
	next    core.Backend
	metrics *Metrics
}

// Wrap decorates next. Optional capabilities are forwarded only when next
// supports them (see core.Capability).
func Wrap(next core.Backend, metrics *Metrics) *Backend {
	return &Backend{next: next, metrics: metrics}
}

// Unwrap implements core.Wrapper.
func (b *Backend) Unwrap() core.Backend {
	return b.next
}

func (b *Backend) observe(op string, start time.Time, err error) {
	b.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	b.metrics.operations.WithLabelValues(op, result(err)).Inc()
}

// result labels an outcome; a missing key is a normal answer, not an error.
func result(err error) string {
	switch {
	case err == nil, errors.Is(err, core.ErrNotFound):
		return "ok"
	default:
		return core.ReasonOf(err).String()
	}
}

func (b *Backend) Open(ctx context.Context) (err error) {
	defer func(start time.Time) { b.observe("open", start, err) }(time.Now())
	return b.next.Open(ctx)
}

func (b *Backend) Put(ctx context.Context, rec core.Record) (err error) {
	defer func(start time.Time) { b.observe("put", start, err) }(time.Now())
	return b.next.Put(ctx, rec)
}

func (b *Backend) Get(ctx context.Context, key string) (rec core.Record, err error) {
	defer func(start time.Time) { b.observe("get", start, err) }(time.Now())
	return b.next.Get(ctx, key)
}

func (b *Backend) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { b.observe("delete", start, err) }(time.Now())
	return b.next.Delete(ctx, key)
}

func (b *Backend) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { b.observe("clear", start, err) }(time.Now())
	return b.next.Clear(ctx)
}

func (b *Backend) All(ctx context.Context) (recs []core.Record, err error) {
	defer func(start time.Time) { b.observe("all", start, err) }(time.Now())
	return b.next.All(ctx)
}

func (b *Backend) Close() (err error) {
	defer func(start time.Time) { b.observe("close", start, err) }(time.Now())
	return b.next.Close()
}

var errUnsupported = errors.New("capability not supported by the wrapped backend")

// PutBatch implements core.Batcher.
func (b *Backend) PutBatch(ctx context.Context, recs []core.Record) (err error) {
	defer func(start time.Time) { b.observe("put_batch", start, err) }(time.Now())
	batcher, ok := core.Capability[core.Batcher](b.next)
	if !ok {
		return errUnsupported
	}
	return batcher.PutBatch(ctx, recs)
}

// Estimate implements core.Estimator.
func (b *Backend) Estimate(ctx context.Context) (est core.Estimate, err error) {
	defer func(start time.Time) { b.observe("estimate", start, err) }(time.Now())
	estimator, ok := core.Capability[core.Estimator](b.next)
	if !ok {
		return core.Estimate{}, errUnsupported
	}
	return estimator.Estimate(ctx)
}

// Persisted implements core.Persister.
func (b *Backend) Persisted(ctx context.Context) (granted bool, err error) {
	defer func(start time.Time) { b.observe("persisted", start, err) }(time.Now())
	p, ok := core.Capability[core.Persister](b.next)
	if !ok {
		return false, errUnsupported
	}
	return p.Persisted(ctx)
}

// Persist implements core.Persister.
func (b *Backend) Persist(ctx context.Context) (granted bool, err error) {
	defer func(start time.Time) { b.observe("persist", start, err) }(time.Now())
	p, ok := core.Capability[core.Persister](b.next)
	if !ok {
		return false, errUnsupported
	}
	return p.Persist(ctx)
}

// Watch implements core.Watchable. Only the subscription is measured.
func (b *Backend) Watch(ctx context.Context, pattern string) (ch <-chan core.Event, err error) {
	defer func(start time.Time) { b.observe("watch", start, err) }(time.Now())
	w, ok := core.Capability[core.Watchable](b.next)
	if !ok {
		return nil, errUnsupported
	}
	return w.Watch(ctx, pattern)
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "instrument"
}

var (
	_ core.Backend   = (*Backend)(nil)
	_ core.Wrapper   = (*Backend)(nil)
	_ core.Batcher   = (*Backend)(nil)
	_ core.Estimator = (*Backend)(nil)
	_ core.Persister = (*Backend)(nil)
	_ core.Watchable = (*Backend)(nil)
)
