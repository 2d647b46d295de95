// Package metrics exposes probe outcomes to Prometheus. The collectors are
// registered on a private registry so tests can run side by side without
// tripping over duplicate registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	pagesWatched  prometheus.Gauge
	sweepsTotal   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_probes_total",
			Help: "Probe attempts by verdict.",
		}, []string{"verdict"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagewatch_probe_duration_seconds",
			Help:    "Wall-clock duration of probe round trips.",
			Buckets: prometheus.DefBuckets,
		}),
		pagesWatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagewatch_pages_watched",
			Help: "Number of configured pages.",
		}),
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagewatch_sweeps_total",
			Help: "Completed sweeps over all configured pages.",
		}),
	}
	m.registry.MustRegister(m.probesTotal, m.probeDuration, m.pagesWatched, m.sweepsTotal)
	return m
}

// ObserveProbe records one finished probe attempt. A nil receiver is a no-op
// so components can run without metrics wired (tests mostly do).
func (m *Metrics) ObserveProbe(verdict string, d time.Duration, hasDuration bool) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(verdict).Inc()
	if hasDuration {
		m.probeDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetPagesWatched(n int) {
	if m == nil {
		return
	}
	m.pagesWatched.Set(float64(n))
}

func (m *Metrics) ObserveSweep() {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
