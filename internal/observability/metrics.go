package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for SpotLedger. Components accept
// a nil *Metrics and skip instrumentation, so tests run unregistered.
type Metrics struct {
	// --- Engine ---
	OpsApplied       *prometheus.CounterVec
	OpsRejected      *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
	EventLogSequence prometheus.Gauge
	EventWatchDrops  prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        prometheus.Counter
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Broadcast ---
	PublishEvents prometheus.Counter
	PublishErrors prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry. Call at most once per process.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}
	queryBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_ops_applied_total",
			Help: "Operations applied by the settlement engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_ops_rejected_total",
			Help: "Operations rejected before mutating state",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spot_op_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		EventLogSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spot_event_log_sequence",
			Help: "Highest sequence appended to the event log",
		}),

		EventWatchDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_event_watch_drops_total",
			Help: "Envelopes dropped on full watch channels",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_persist_events_written_total",
			Help: "Event rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "spot_persist_batch_size",
			Help:    "Events per persisted batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "spot_persist_batch_duration_seconds",
			Help:    "Time to write one batch",
			Buckets: queryBuckets,
		}),

		PersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_persist_errors_total",
			Help: "Failed batch writes, including retried ones",
		}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_persist_retries_total",
			Help: "Batch write retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "spot_persist_last_sequence",
			Help: "Highest sequence durably written",
		}),

		PublishEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_publish_events_total",
			Help: "Envelopes published to JetStream",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "spot_publish_errors_total",
			Help: "Failed JetStream publishes",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spot_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spot_query_duration_seconds",
			Help:    "Query API request duration",
			Buckets: queryBuckets,
		}, []string{"endpoint"}),
	}
}
