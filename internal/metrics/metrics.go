package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LogsFetched counts chain logs pulled per network.
	LogsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shieldscope_logs_fetched_total", Help: "Chain logs fetched"},
		[]string{"network"},
	)
	// EventsDecoded counts decoded domain events per network and type.
	EventsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shieldscope_events_decoded_total", Help: "Domain events decoded"},
		[]string{"network", "type"},
	)
	// LogsSkipped counts logs no strategy produced events for.
	LogsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shieldscope_logs_skipped_total", Help: "Logs skipped by the decoder"},
		[]string{"network"},
	)
	// BatchesCommitted counts persisted ingestion batches.
	BatchesCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shieldscope_batches_committed_total", Help: "Ingestion batches committed"},
		[]string{"network"},
	)
	// BatchFailures counts batch-fatal ingestion errors.
	BatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shieldscope_batch_failures_total", Help: "Batch-fatal ingestion errors"},
		[]string{"network"},
	)
	// CheckpointHeight tracks the durable checkpoint per network.
	CheckpointHeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "shieldscope_checkpoint_height", Help: "Durable checkpoint block height"},
		[]string{"network"},
	)
	// BatchDuration observes end-to-end batch latency.
	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "shieldscope_batch_duration_seconds", Help: "Batch latency", Buckets: prometheus.DefBuckets},
		[]string{"network"},
	)
	// RecomputeDuration observes aggregate recompute latency per family.
	RecomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "shieldscope_recompute_duration_seconds", Help: "Aggregate recompute latency", Buckets: prometheus.DefBuckets},
		[]string{"family"},
	)
	// FeeParseSkips counts withdrawal events whose fee metadata was unreadable.
	FeeParseSkips = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "shieldscope_aggregate_fee_parse_skips_total", Help: "Fee metadata parse skips"},
	)
)

func init() {
	prometheus.MustRegister(
		LogsFetched, EventsDecoded, LogsSkipped, BatchesCommitted, BatchFailures,
		CheckpointHeight, BatchDuration, RecomputeDuration, FeeParseSkips,
	)
}

// Handler returns the mux serving /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
