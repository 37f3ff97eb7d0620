package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects Prometheus metrics for the retrieval pipeline.
type Metrics struct {
	// QuestionCounter counts processed questions.
	// Labels: status (success|error)
	QuestionCounter *prometheus.CounterVec

	// BatchFlushCounter counts metrics-store batch flushes.
	// Labels: status (success|error)
	BatchFlushCounter *prometheus.CounterVec

	// StageDuration measures per-stage latency in seconds.
	// Labels: stage (embed|search|rerank|generate)
	// Buckets: 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2s, 5s, 10s, 30s
	StageDuration *prometheus.HistogramVec

	// TokensUsed tracks token consumption across a run.
	// Labels: type (query_embed|input|output)
	TokensUsed *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics with a registerer.
// Pass prometheus.DefaultRegisterer in production; tests can pass a fresh
// registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QuestionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_questions_total",
				Help: "Questions processed by the retrieval pipeline.",
			},
			[]string{"status"},
		),
		BatchFlushCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_batch_flushes_total",
				Help: "Metrics-store batch flushes.",
			},
			[]string{"status"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragbench_stage_duration_seconds",
				Help:    "Per-stage latency.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		),
		TokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_tokens_total",
				Help: "Tokens consumed, by accounting bucket.",
			},
			[]string{"type"},
		),
	}
}

// PushMetrics delivers all gathered metrics to a Prometheus Pushgateway
// under the given job name. Batch commands call this once at end of run,
// since a short-lived process has no scrape endpoint to expose.
func PushMetrics(url, job string, gatherer prometheus.Gatherer, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(gatherer)
	for key, value := range grouping {
		pusher = pusher.Grouping(key, value)
	}
	return pusher.Push()
}
