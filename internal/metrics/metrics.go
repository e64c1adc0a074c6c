// Package metrics exposes Prometheus collectors for chat and visit activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jxucoder/tomoru/model"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ChatOutcomes    *prometheus.CounterVec
	GenerateSeconds prometheus.Histogram
	VisitsOpen      prometheus.Gauge
	Reveals         *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChatOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomoru_chat_outcomes_total",
				Help: "Chat exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		GenerateSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tomoru_chat_generate_seconds",
				Help:    "Time spent waiting for the generator.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		VisitsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tomoru_visits_open",
				Help: "Visits currently held in memory.",
			},
		),
		Reveals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tomoru_reveals_total",
				Help: "Content blocks revealed, by block.",
			},
			[]string{"block"},
		),
	}
	m.registry.MustRegister(
		m.ChatOutcomes,
		m.GenerateSeconds,
		m.VisitsOpen,
		m.Reveals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveChat records one completed exchange.
func (m *Metrics) ObserveChat(outcome model.Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.ChatOutcomes.WithLabelValues(string(outcome)).Inc()
	m.GenerateSeconds.Observe(d.Seconds())
}

// ObserveReveal counts a block turning visible.
func (m *Metrics) ObserveReveal(block string) {
	if m == nil {
		return
	}
	m.Reveals.WithLabelValues(block).Inc()
}

// SetVisitsOpen sets the open-visit gauge.
func (m *Metrics) SetVisitsOpen(n int) {
	if m == nil {
		return
	}
	m.VisitsOpen.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
