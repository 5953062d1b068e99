// Package observability holds the Prometheus collectors and OpenTelemetry tracer used across the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ReactionToggles counts toggle outcomes: created, changed, removed, conflict, error.
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_reaction_toggles_total",
		Help: "Total number of reaction toggles by outcome",
	}, []string{"outcome"})

	// ReactionRaceRetries counts toggles that lost a uniqueness race and were re-applied.
	ReactionRaceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shapeit_reaction_race_retries_total",
		Help: "Total number of reaction toggles re-applied after a concurrent write",
	})

	// FeedDegraded counts feed pages served empty because a store call failed.
	FeedDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_feed_degraded_total",
		Help: "Total number of feed pages degraded to empty by failing stage",
	}, []string{"stage"})

	// FeedAssemblyLatency records how long a feed page takes to assemble.
	FeedAssemblyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shapeit_feed_assembly_seconds",
		Help:    "Feed page assembly latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})

	// BlobUploads counts image uploads by result: stored, reused, fallback, failed.
	BlobUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_blob_uploads_total",
		Help: "Total number of image uploads by result",
	}, []string{"result"})

	// PostReports counts user reports filed against posts.
	PostReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shapeit_post_reports_total",
		Help: "Total number of post reports",
	})

	// ActiveWebSockets tracks open feed websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shapeit_websocket_connections",
		Help: "Number of open feed websocket connections",
	})

	// WebSocketDrops counts events not delivered to a client, by reason: full, closed.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_websocket_dropped_messages_total",
		Help: "Total number of websocket messages dropped by reason",
	}, []string{"reason"})

	// ProviderRequests counts identity provider API calls by endpoint and result.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shapeit_provider_requests_total",
		Help: "Total number of identity provider API requests",
	}, []string{"endpoint", "result"})
)

// ObserveFeedAssembly returns a func that records the elapsed time for scope when called.
func ObserveFeedAssembly(scope string) func() {
	start := time.Now()
	return func() {
		FeedAssemblyLatency.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	}
}
