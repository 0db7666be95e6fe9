package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gedi_canopy"

// Metrics holds the Prometheus counters, histograms, and gauges for both
// the acquisition and the synthesis pipelines.
type Metrics struct {
	// Catalog search metrics.
	CatalogRequests        *prometheus.CounterVec // labels: outcome={success,error}
	CatalogRequestDuration prometheus.Histogram
	GranulesFound          prometheus.Counter

	// Download metrics.
	GranuleDownloads *prometheus.CounterVec // labels: result={downloaded,skipped,error}
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram

	// Synthesis metrics.
	RowsRead                prometheus.Counter
	RowsSynthesized         prometheus.Counter
	RowsWritten             prometheus.Counter
	SinkErrors              prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CatalogRequests,
		m.CatalogRequestDuration,
		m.GranulesFound,
		m.GranuleDownloads,
		m.DownloadBytes,
		m.DownloadDuration,
		m.RowsRead,
		m.RowsSynthesized,
		m.RowsWritten,
		m.SinkErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
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
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "CMR search page requests by outcome.",
		}, []string{"outcome"}),
		CatalogRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "CMR search page request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GranulesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "granules_found_total",
			Help:      "Granules matched by catalog searches.",
		}),
		GranuleDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "granule_downloads_total",
			Help:      "Granule files processed by result.",
		}, []string{"result"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to the granule destination.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of a single granule file download.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Biomass rows read from the input.",
		}),
		RowsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_synthesized_total",
			Help:      "Rows with valid biomass that received synthesized heights.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Canopy rows written to the output.",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Batches that failed to load into a sink.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline is active, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of rows per synthesis batch.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-transform-load batch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}
