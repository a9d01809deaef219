package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every Prometheus collector the contentcore daemons expose.
// A single instance is created per process and passed explicitly to the
// components that tick it; nothing registers through package globals.
type Metrics struct {
	registry *prometheus.Registry

	IngestJobs       *prometheus.CounterVec // status: success|failure
	IngestJobSeconds prometheus.Histogram
	IngestRetries    prometheus.Counter

	SearchRequests    *prometheus.CounterVec // mode: relevancy|recency|balanced
	QueryCacheHits    prometheus.Counter
	RerankerSkipped   prometheus.Counter
	RerankerFailures  prometheus.Counter
	UpstreamFailures  *prometheus.CounterVec // dependency: elastic|postgres|redis|kafka|intelligence|blob
	RateLimitDenials  *prometheus.CounterVec // endpoint
	HighlightJobs     *prometheus.CounterVec // status: success|degraded|empty|timeout|error
	HighlightSeconds  prometheus.Histogram
	ClipsGenerated    prometheus.Counter
	SignalSeconds     *prometheus.HistogramVec // signal
	SignalFailures    *prometheus.CounterVec   // signal
	VTTUsed           *prometheus.CounterVec   // used: true|false
	IntelligenceCalls *prometheus.CounterVec   // type: embed|summary|title_gen|rerank|analyze
	CPUPercent        prometheus.Gauge
	MemoryMB          prometheus.Gauge
	ThrottleCount     prometheus.Counter
}

// NewMetrics builds a fresh registry with all contentcore collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IngestJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_ingest_worker_jobs_total",
			Help: "Total oplog jobs processed",
		}, []string{"status"}),
		IngestJobSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "contentcore_ingest_worker_job_seconds",
			Help: "Time spent processing an oplog job",
		}),
		IngestRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_ingest_worker_retries_total",
			Help: "Total oplog job retries",
		}),
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_search_requests_total",
			Help: "Search requests by sort mode",
		}, []string{"mode"}),
		QueryCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_search_query_cache_hits_total",
			Help: "Query-embedding cache hits",
		}),
		RerankerSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_reranker_skipped_total",
			Help: "Searches served without reranking while the breaker was open",
		}),
		RerankerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_reranker_failures_total",
			Help: "Reranker call failures",
		}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_upstream_failures_total",
			Help: "Upstream dependency failures",
		}, []string{"dependency"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_rate_limit_denials_total",
			Help: "Requests denied by the token bucket",
		}, []string{"endpoint"}),
		HighlightJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_highlight_jobs_total",
			Help: "Highlight jobs by outcome",
		}, []string{"status"}),
		HighlightSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentcore_highlight_job_seconds",
			Help:    "End-to-end highlight job duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ClipsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_highlight_clips_total",
			Help: "Clips generated",
		}),
		SignalSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "contentcore_highlight_signal_seconds",
			Help: "Per-signal detection duration",
		}, []string{"signal"}),
		SignalFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_highlight_signal_failures_total",
			Help: "Per-signal detection failures",
		}, []string{"signal"}),
		VTTUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_highlight_vtt_used_total",
			Help: "Whether a VTT caption file was available for a job",
		}, []string{"used"}),
		IntelligenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contentcore_intelligence_calls_total",
			Help: "Calls to the intelligence gateway by type",
		}, []string{"type"}),
		CPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contentcore_governance_cpu_percent",
			Help: "Last sampled process CPU percent",
		}),
		MemoryMB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contentcore_governance_memory_mb",
			Help: "Last sampled RSS in MB",
		}),
		ThrottleCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "contentcore_governance_throttles_total",
			Help: "Times the pipeline paused for resource limits",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
