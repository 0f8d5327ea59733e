package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-messages-api/internal/query"
)

var (
	// storeOps counts collection operations by backend, collection, op and outcome.
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of collection store operations.",
		},
		[]string{"backend", "collection", "op", "outcome"},
	)

	// storeLat records operation latency in seconds.
	storeLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of collection store operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "collection", "op"},
	)
)

func init() {
	prometheus.MustRegister(storeOps, storeLat)
}

// instrumented wraps a Collection and records Prometheus metrics per call.
type instrumented[T query.Record] struct {
	inner      Collection[T]
	backend    string
	collection string
}

// Instrument returns c wrapped with operation counters and latency
// histograms labeled by backend and collection name.
func Instrument[T query.Record](c Collection[T], backend, collection string) Collection[T] {
	return &instrumented[T]{inner: c, backend: backend, collection: collection}
}

func (i *instrumented[T]) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOps.WithLabelValues(i.backend, i.collection, op, outcome).Inc()
	storeLat.WithLabelValues(i.backend, i.collection, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented[T]) LoadAll(ctx context.Context) (out []T, err error) {
	defer func(start time.Time) { i.observe("load_all", start, err) }(time.Now())
	return i.inner.LoadAll(ctx)
}

func (i *instrumented[T]) SaveAll(ctx context.Context, records []T) (err error) {
	defer func(start time.Time) { i.observe("save_all", start, err) }(time.Now())
	return i.inner.SaveAll(ctx, records)
}

func (i *instrumented[T]) Mutate(ctx context.Context, fn MutateFunc[T]) (err error) {
	defer func(start time.Time) { i.observe("mutate", start, err) }(time.Now())
	return i.inner.Mutate(ctx, fn)
}

func (i *instrumented[T]) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("ping", start, err) }(time.Now())
	return i.inner.Ping(ctx)
}
