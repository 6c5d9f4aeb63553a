package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crash_mapper"

// Metrics holds the Prometheus counters and histograms for upload processing.
type Metrics struct {
	Uploads            *prometheus.CounterVec // labels: format={standard,segment5,unknown}, outcome={success,malformed,unreadable,empty}
	RowsParsed         prometheus.Counter
	RowsDropped        *prometheus.CounterVec // labels: reason
	RecordsClassified  *prometheus.CounterVec // labels: severity, direction_bucket
	ProcessingDuration prometheus.Histogram

	// Publishing metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Uploads,
		m.RowsParsed,
		m.RowsDropped,
		m.RecordsClassified,
		m.ProcessingDuration,
		m.RecordsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploaded spreadsheets by detected format and outcome.",
		}, []string{"format", "outcome"}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Rows that produced a crash record.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows skipped during parsing, by reason.",
		}, []string{"reason"}),
		RecordsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_classified_total",
			Help:      "Classified crash records by severity and direction bucket.",
		}, []string{"severity", "direction_bucket"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_processing_duration_seconds",
			Help:      "Duration of reading, parsing, classifying and rendering one upload.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Classified records written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
	}
}
