// Package metrics provides the Prometheus metrics endpoint served on a
// dedicated listener, plus the feed actor's counters.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves /metrics from its own registry on a dedicated
// address, kept separate from the service's public listener.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a metrics server for addr. The registry is usable even when
// addr is empty and the listener is never started.
func New(addr string) *MetricsServer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Registry returns the server's registry for component metrics.
func (m *MetricsServer) Registry() *prometheus.Registry { return m.registry }

// ListenAndServe blocks serving the metrics endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// FeedMetrics counts the feed actor's externally interesting events.
type FeedMetrics struct {
	PostsCreated        prometheus.Counter
	MutationsApplied    *prometheus.CounterVec
	NoticesIngested     *prometheus.CounterVec
	NoticesDeduplicated *prometheus.CounterVec
	FanoutFailures      prometheus.Counter
}

// NewFeedMetrics registers the feed counters with reg.
func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	factory := promauto.With(reg)
	return &FeedMetrics{
		PostsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "proton_posts_created_total",
			Help: "Posts authored through this actor.",
		}),
		MutationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proton_mutations_applied_total",
			Help: "Content mutations by kind and status.",
		}, []string{"kind", "status"}),
		NoticesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proton_notices_ingested_total",
			Help: "First-time notice ingestions by kind.",
		}, []string{"kind"}),
		NoticesDeduplicated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proton_notices_deduplicated_total",
			Help: "Notices dropped by the cache-membership check, by kind.",
		}, []string{"kind"}),
		FanoutFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "proton_fanout_failures_total",
			Help: "Fan-out deliveries that failed after local commit.",
		}),
	}
}
