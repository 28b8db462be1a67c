package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seismic_sentinel"

// Metrics holds the Prometheus counters, histograms, and gauges for the bulletin pipeline.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration      prometheus.Histogram
	SchedulerRunning prometheus.Gauge

	// Fetch and parse metrics.
	FetchFailures  prometheus.Counter
	LinesFetched   prometheus.Counter
	RecordsParsed  prometheus.Counter
	LinesRejected  *prometheus.CounterVec // labels: reason={short_line,too_few_fields,invalid_field}
	DatasetRecords prometheus.Gauge

	// Analysis and export metrics.
	AnomaliesDetected prometheus.Gauge
	RecordsExported   *prometheus.CounterVec // labels: exporter={json,kafka}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SchedulerRunning,
		m.FetchFailures,
		m.LinesFetched,
		m.RecordsParsed,
		m.LinesRejected,
		m.DatasetRecords,
		m.AnomaliesDetected,
		m.RecordsExported,
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
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-parse-analyze-export run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the recurring scheduler is active, 0 when shut down.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Bulletin fetches that fell back to an empty line set.",
		}),
		LinesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_fetched_total",
			Help:      "Bulletin lines received after the header block.",
		}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Bulletin lines converted into records.",
		}),
		LinesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_rejected_total",
			Help:      "Bulletin lines dropped by rejection reason.",
		}, []string{"reason"}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Records in the dataset analyzed by the last run.",
		}),
		AnomaliesDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies_detected",
			Help:      "Magnitude anomalies found by the last run.",
		}),
		RecordsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_exported_total",
			Help:      "Records written by each exporter.",
		}, []string{"exporter"}),
	}
}
