package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RedditRequestsTotal counts outbound Reddit requests by endpoint kind
	// and terminal outcome (ok, rate_limited, transient, permanent, empty).
	RedditRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reddit_requests_total",
			Help: "Total number of Reddit HTTP requests",
		},
		[]string{"endpoint", "outcome"},
	)
	RedditRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reddit_request_duration_seconds",
			Help:    "Reddit HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	PipelinePostsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_posts_fetched_total",
			Help: "Total number of posts fetched across all runs",
		},
	)
	PipelinePostsAnalyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_posts_analyzed_total",
			Help: "Total number of posts analyzed by extraction state",
		},
		[]string{"state"},
	)
	PipelineErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Total number of per-post pipeline failures",
		},
	)
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal status",
		},
		[]string{"status"},
	)

	// SignalScoreHistogram tracks the distribution of total scores for
	// qualified signals ([0,50]).
	SignalScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_total_score",
			Help:    "Distribution of signal total scores",
			Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50},
		},
	)
)

// InitMetrics registers all collectors with the default registry.
func InitMetrics() {
	prometheus.MustRegister(RedditRequestsTotal)
	prometheus.MustRegister(RedditRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(PipelinePostsFetchedTotal)
	prometheus.MustRegister(PipelinePostsAnalyzedTotal)
	prometheus.MustRegister(PipelineErrorsTotal)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(SignalScoreHistogram)
}
