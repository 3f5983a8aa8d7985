package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/alchscan/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alchscan"

// Metrics holds the collectors for one run on a private registry, so several
// runs in one process never clash.
type Metrics struct {
	registry *prometheus.Registry

	pages    *prometheus.CounterVec
	records  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates and registers the fetch metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Pages fetched, by transfer direction",
		}, []string{"direction"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "records_total",
			Help:      "Transfer records received, by transfer direction",
		}, []string{"direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Failed page fetches, by error kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Time spent per page request",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	m.registry.MustRegister(m.pages, m.records, m.errors, m.duration)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values in the text exposition format,
// suitable for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// Instrument wraps next so every FetchPage call is counted and timed.
func (m *Metrics) Instrument(next providers.PageFetcher) providers.PageFetcher {
	return &instrumented{next: next, m: m}
}

type instrumented struct {
	next providers.PageFetcher
	m    *Metrics
}

func (f *instrumented) Name() string { return f.next.Name() }

func (f *instrumented) FetchPage(ctx context.Context, q providers.Query, cursor string) (*providers.Page, error) {
	start := time.Now()
	page, err := f.next.FetchPage(ctx, q, cursor)
	f.m.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		f.m.errors.WithLabelValues(errorKind(err)).Inc()
		return page, err
	}
	dir := string(q.Direction)
	f.m.pages.WithLabelValues(dir).Inc()
	f.m.records.WithLabelValues(dir).Add(float64(len(page.Transfers)))
	return page, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, providers.ErrTransport):
		return "transport"
	case errors.Is(err, providers.ErrRPC):
		return "rpc"
	case errors.Is(err, providers.ErrMalformed):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
