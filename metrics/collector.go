// Package metrics exposes Prometheus metrics for error interception.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records dispatch and interception outcomes.
// It satisfies interceptors.MetricsCollector and
// interceptors.InterceptionObserver.
type Collector struct {
	dispatches  prometheus.Counter
	dispatchDur prometheus.Histogram
	errors      *prometheus.CounterVec
	intercepted *prometheus.CounterVec
	floodWaits  prometheus.Counter
	fallbacks   *prometheus.CounterVec
}

// NewCollector creates a collector and registers it with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		dispatches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "errhook_dispatches_total",
				Help: "Total units of blocking work dispatched",
			},
		),
		dispatchDur: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "errhook_dispatch_duration_seconds",
				Help:    "Time spent awaiting dispatched work",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errhook_dispatch_errors_total",
				Help: "Dispatched work that returned an error, by kind",
			},
			[]string{"kind"},
		),
		intercepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errhook_intercepted_errors_total",
				Help: "Errors delivered to the error callback, by kind",
			},
			[]string{"kind"},
		),
		floodWaits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "errhook_flood_waits_total",
				Help: "Flood wait errors passed through to the caller",
			},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errhook_fallbacks_total",
				Help: "Failures handed to the fallback sink, by reason",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(c.dispatches, c.dispatchDur, c.errors, c.intercepted, c.floodWaits, c.fallbacks)

	return c
}

// IncrementDispatchCount implements interceptors.MetricsCollector
func (c *Collector) IncrementDispatchCount() {
	c.dispatches.Inc()
}

// RecordDispatchTime implements interceptors.MetricsCollector
func (c *Collector) RecordDispatchTime(duration time.Duration) {
	c.dispatchDur.Observe(duration.Seconds())
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *Collector) IncrementErrorCount(kind string) {
	c.errors.WithLabelValues(kind).Inc()
}

// ErrorIntercepted implements interceptors.InterceptionObserver
func (c *Collector) ErrorIntercepted(kind string) {
	c.intercepted.WithLabelValues(kind).Inc()
}

// FloodWaitPassed implements interceptors.InterceptionObserver
func (c *Collector) FloodWaitPassed() {
	c.floodWaits.Inc()
}

// FallbackInvoked implements interceptors.InterceptionObserver
func (c *Collector) FallbackInvoked(reason string) {
	c.fallbacks.WithLabelValues(reason).Inc()
}
