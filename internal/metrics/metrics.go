// Package metrics holds the Prometheus collectors for analyses. The process
// is short-lived, so collectors live in a private registry that is flushed to
// a node_exporter textfile rather than served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudewatch_analyses_total",
			Help: "Count of analyses by strategy and verdict.",
		},
		[]string{"strategy", "verdict"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudewatch_alerts_total",
			Help: "Count of fired alerts by severity.",
		},
		[]string{"severity"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudewatch_errors_total",
			Help: "Count of failed analyses by stage.",
		},
		[]string{"stage"},
	)

	// Latency of feature extraction calls
	ExtractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "claudewatch_extraction_duration_seconds",
		Help:    "Latency of feature extraction requests.",
		Buckets: prometheus.DefBuckets,
	})

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudewatch_activation_cache_lookups_total",
			Help: "Activation cache lookups by result.",
		},
		[]string{"result"},
	)

	LastAnalysis = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "claudewatch_last_analysis_timestamp_seconds",
		Help: "Unix time of the most recent analysis.",
	})
)

func init() {
	Registry.MustRegister(
		AnalysesTotal,
		AlertsTotal,
		ErrorsTotal,
		ExtractionDuration,
		CacheLookups,
		LastAnalysis,
	)
}

// ObserveAnalysis records one completed analysis.
func ObserveAnalysis(strategy, verdict string, fired bool, severity string) {
	AnalysesTotal.WithLabelValues(strategy, verdict).Inc()
	if fired {
		AlertsTotal.WithLabelValues(severity).Inc()
	}
	LastAnalysis.Set(float64(time.Now().Unix()))
}

// ObserveCache adds the hit and miss counts of one run.
func ObserveCache(hits, misses int64) {
	CacheLookups.WithLabelValues("hit").Add(float64(hits))
	CacheLookups.WithLabelValues("miss").Add(float64(misses))
}

// WriteTextfile writes the registry in text exposition format. An empty path
// is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
