// Package metrics exposes Prometheus instrumentation for the inference
// layer. Exposition (an HTTP /metrics endpoint) is the host's concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the inference-layer Prometheus collectors.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	LatencyHistogram *prometheus.HistogramVec

	TokensInputTotal  *prometheus.CounterVec
	TokensOutputTotal *prometheus.CounterVec
	CostTotal         *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// New registers and returns the collectors on the given registerer. Pass a
// fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_requests_total",
				Help: "Total number of inference requests",
			},
			[]string{"provider", "model", "status"},
		),
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inference_latency_seconds",
				Help:    "Inference latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		TokensInputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_tokens_input_total",
				Help: "Total number of input tokens processed",
			},
			[]string{"provider", "model"},
		),
		TokensOutputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_tokens_output_total",
				Help: "Total number of output tokens generated",
			},
			[]string{"provider", "model"},
		),
		CostTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_cost_total",
				Help: "Total estimated cost of metered calls",
			},
			[]string{"provider", "model", "currency"},
		),
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inference_cache_hits_total",
				Help: "Total number of response cache hits",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "inference_cache_misses_total",
				Help: "Total number of response cache misses",
			},
		),
	}
}

// RecordRequest records one finished request.
func (m *Metrics) RecordRequest(provider, model, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LatencyHistogram.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token consumption for one call.
func (m *Metrics) RecordTokens(provider, model string, input, output int) {
	m.TokensInputTotal.WithLabelValues(provider, model).Add(float64(input))
	m.TokensOutputTotal.WithLabelValues(provider, model).Add(float64(output))
}

// RecordCost records the estimated cost of one metered call.
func (m *Metrics) RecordCost(provider, model, currency string, cost float64) {
	m.CostTotal.WithLabelValues(provider, model, currency).Add(cost)
}
