// ABOUTME: Prometheus metrics for CSV export actions
// ABOUTME: Counts exports by outcome, rows written, and export duration per model

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export outcomes used as the "outcome" label.
const (
	OutcomeExported  = "exported"
	OutcomeForbidden = "forbidden"
	OutcomeFailed    = "failed"
)

// Collector owns the export metrics and the registry they are exposed from.
//
// Metrics:
//   - csvexport_exports_total: exports by model and outcome
//   - csvexport_rows_total: data rows written by model
//   - csvexport_export_duration_seconds: time spent writing an export
type Collector struct {
	registry *prometheus.Registry

	exportsTotal   *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
}

// NewCollector creates and registers the export metrics. If registry is nil
// a fresh registry is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "csvexport",
				Name:      "exports_total",
				Help:      "Total number of CSV export actions by outcome",
			},
			[]string{"model", "outcome"},
		),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "csvexport",
				Name:      "rows_total",
				Help:      "Total number of data rows written to CSV exports",
			},
			[]string{"model"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "csvexport",
				Name:      "export_duration_seconds",
				Help:      "Time spent writing a CSV export",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(c.exportsTotal, c.rowsTotal, c.exportDuration)
	return c
}

// RecordExport records a finished export attempt. A nil Collector is a no-op
// so callers don't need to guard disabled metrics.
func (c *Collector) RecordExport(model, outcome string, rows int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.exportsTotal.WithLabelValues(model, outcome).Inc()
	if outcome == OutcomeExported || rows > 0 {
		c.rowsTotal.WithLabelValues(model).Add(float64(rows))
	}
	if outcome != OutcomeForbidden {
		c.exportDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
