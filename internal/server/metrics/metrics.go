// Package metrics holds the Prometheus collectors for the serving path.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentiment"

// Metrics groups the serving collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	latency     prometheus.Histogram
	reloads     *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served, by predicted sentiment.",
		}, []string{"sentiment"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Prediction requests rejected or failed, by error code.",
		}, []string{"code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent acquiring a predictor and scoring one text.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16),
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_reloads_total",
			Help:      "Model artifact reload attempts, by model and result.",
		}, []string{"model", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.predictions, m.errors, m.latency, m.reloads, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePrediction records one successful prediction.
func (m *Metrics) ObservePrediction(sentiment string, d time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(sentiment).Inc()
	m.latency.Observe(d.Seconds())
}

// ObserveError records one failed prediction request.
func (m *Metrics) ObserveError(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// ObserveReload records a reload attempt; it matches the pool reload hook.
func (m *Metrics) ObserveReload(model string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.reloads.WithLabelValues(model, result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Observe(d.Seconds())
}
