// Package metrics exposes Prometheus collectors for sensor ingestion and
// stock status.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reading outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeEmpty     = "empty"
	OutcomeError     = "error"
)

// Metrics owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	readings      *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	batchDuration prometheus.Histogram
	byStatus      *prometheus.GaugeVec
}

// New creates the collectors and registers them with Go runtime metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botiquin_sensor_readings_total",
				Help: "Sensor readings received, by outcome",
			},
			[]string{"outcome"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botiquin_alerts_total",
				Help: "Alerts raised, by type",
			},
			[]string{"type"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "botiquin_sensor_batch_duration_seconds",
				Help:    "Time taken to reconcile one sensor batch",
				Buckets: prometheus.DefBuckets,
			},
		),
		byStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "botiquin_medicines_by_status",
				Help: "Medicines per status at the last sweep",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.readings,
		m.alerts,
		m.batchDuration,
		m.byStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveReading counts one reading. Nil receivers are ignored.
func (m *Metrics) ObserveReading(outcome string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(outcome).Inc()
}

// ObserveAlert counts one alert of the given type.
func (m *Metrics) ObserveAlert(alertType string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(alertType).Inc()
}

// ObserveBatch records how long a batch took since start.
func (m *Metrics) ObserveBatch(start time.Time) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(time.Since(start).Seconds())
}

// SetStatusCounts replaces the per-status gauge values.
func (m *Metrics) SetStatusCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.byStatus.Reset()
	for status, n := range counts {
		m.byStatus.WithLabelValues(status).Set(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
