// Package telemetry exposes Prometheus metrics for flag evaluation and
// config synchronization.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goflag_evaluations_total",
			Help: "Total flag evaluations",
		},
		[]string{"key", "outcome"},
	)
	evalDur = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goflag_evaluation_duration_seconds",
			Help:    "Flag evaluation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
	)
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goflag_config_fetches_total",
			Help: "Total config fetch attempts by outcome",
		},
		[]string{"status"},
	)

	// ConfigFetchTime tracks the Unix timestamp of the last stored config.
	ConfigFetchTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goflag_config_fetch_timestamp_seconds",
		Help: "Unix timestamp of the currently held config record",
	})
	// SettingCount tracks the number of settings in the current config.
	SettingCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goflag_settings",
		Help: "Number of settings in the currently held config",
	})
)

// Init registers all collectors with the default registry. Call at most once
// per process.
func Init() {
	prometheus.MustRegister(evaluations, evalDur, fetches, ConfigFetchTime, SettingCount)
}

// RecordEvaluation counts one evaluation of key with the given outcome
// ("success" or an error code) and its duration.
func RecordEvaluation(key, outcome string, elapsed time.Duration) {
	evaluations.WithLabelValues(key, outcome).Inc()
	evalDur.Observe(elapsed.Seconds())
}

// RecordFetch counts one fetch attempt by outcome label.
func RecordFetch(status string) {
	fetches.WithLabelValues(status).Inc()
}
