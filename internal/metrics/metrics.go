// Package metrics provides Prometheus metrics for both pipelines.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the retrieval and measurement
// pipelines.
type Metrics struct {
	// Retrieval metrics
	BatchesSubmitted prometheus.Counter
	BatchesCompleted prometheus.Counter
	RemotePaths      prometheus.Counter
	PollAttempts     prometheus.Counter

	// Measurement metrics
	FilesMeasured         prometheus.Counter
	FilesSkipped          *prometheus.CounterVec
	UndefinedMeasurements prometheus.Counter
	Reconnects            prometheus.Counter
	MeasureDuration       prometheus.Histogram
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Addr    string
}

var global *Metrics

// Init registers the metrics and, when enabled, serves them over
// promhttp. It returns nil when metrics are disabled.
func Init(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}

	m := &Metrics{
		BatchesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_batches_submitted_total",
			Help: "Dataset batches submitted to the archive.",
		}),
		BatchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_batches_completed_total",
			Help: "Dataset batches the archive finished preparing.",
		}),
		RemotePaths: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_remote_paths_total",
			Help: "Remote file paths accumulated from download scripts.",
		}),
		PollAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_poll_attempts_total",
			Help: "Status page polls against the archive.",
		}),
		FilesMeasured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_files_measured_total",
			Help: "Spectrum files with an activity index ingested.",
		}),
		FilesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harps_files_skipped_total",
			Help: "Spectrum files skipped, by reason.",
		}, []string{"reason"}),
		UndefinedMeasurements: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_undefined_measurements_total",
			Help: "Measurements recorded with the undefined sentinel.",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harps_db_reconnects_total",
			Help: "Worker database reconnect attempts.",
		}),
		MeasureDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harps_measure_duration_seconds",
			Help:    "Per-file measurement duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if cfg.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
				slog.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	global = m
	return m
}

// Get returns the registered metrics, or nil when disabled.
func Get() *Metrics {
	return global
}
