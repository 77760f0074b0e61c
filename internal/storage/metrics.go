package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for store operations.
type Observer interface {
	RecordPut(duration time.Duration, sizeBytes int64, err error)
	RecordDelete(duration time.Duration, err error)
	RecordGet(duration time.Duration, err error)
}

// PrometheusObserver exports store metrics to Prometheus.
type PrometheusObserver struct {
	opDuration *prometheus.HistogramVec
	opErrors   *prometheus.CounterVec
	putBytes   prometheus.Counter
}

// NewPrometheusObserver registers put/get/delete metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "object_store"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency for object store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of object store failures.",
		}, []string{"operation"}),
		putBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "put_bytes_total",
			Help:      "Cumulative payload size successfully written to the object store.",
		}),
	}
	collectors := []prometheus.Collector{o.opDuration, o.opErrors, o.putBytes}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				collectors[i] = are.ExistingCollector
				continue
			}
			return nil, fmt.Errorf("register store metric: %w", err)
		}
	}
	o.opDuration = collectors[0].(*prometheus.HistogramVec)
	o.opErrors = collectors[1].(*prometheus.CounterVec)
	o.putBytes = collectors[2].(prometheus.Counter)
	return o, nil
}

func (o *PrometheusObserver) RecordPut(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	o.opDuration.WithLabelValues("put").Observe(duration.Seconds())
	if err != nil {
		o.opErrors.WithLabelValues("put").Inc()
		return
	}
	o.putBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordDelete(duration time.Duration, err error) {
	recordOperation(o, "delete", duration, err)
}

func (o *PrometheusObserver) RecordGet(duration time.Duration, err error) {
	recordOperation(o, "get", duration, err)
}

func recordOperation(o *PrometheusObserver, op string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.opDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.opErrors.WithLabelValues(op).Inc()
	}
}

// ObservedStore reports every put, get and delete to an Observer.
type ObservedStore struct {
	Store
	observer Observer
}

// NewObservedStore wraps delegate. A nil observer disables recording.
func NewObservedStore(delegate Store, observer Observer) *ObservedStore {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ObservedStore{Store: delegate, observer: observer}
}

func (s *ObservedStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	counted := &countingReader{r: body}
	start := time.Now()
	err := s.Store.Put(ctx, key, counted, contentType)
	s.observer.RecordPut(time.Since(start), counted.n, err)
	return err
}

func (s *ObservedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.Store.Get(ctx, key)
	s.observer.RecordGet(time.Since(start), err)
	return data, err
}

func (s *ObservedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, key)
	s.observer.RecordDelete(time.Since(start), err)
	return err
}

func (s *ObservedStore) CreateBucket(ctx context.Context, name, region string) error {
	return bucketManager(s.Store).CreateBucket(ctx, name, region)
}

func (s *ObservedStore) ListBuckets(ctx context.Context) ([]string, error) {
	return bucketManager(s.Store).ListBuckets(ctx)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type nopObserver struct{}

func (nopObserver) RecordPut(time.Duration, int64, error) {}

func (nopObserver) RecordDelete(time.Duration, error) {}

func (nopObserver) RecordGet(time.Duration, error) {}

func (s *ObservedStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return Signer(s.Store).SignedURL(ctx, key, ttl)
}

var (
	_ Store         = (*ObservedStore)(nil)
	_ BucketManager = (*ObservedStore)(nil)
	_ URLSigner     = (*ObservedStore)(nil)
)
