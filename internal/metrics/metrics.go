package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	signalsGenerated  *prometheus.CounterVec
	signalsExpired    prometheus.Counter
	deliveriesTotal   *prometheus.CounterVec
	deliveryAttempts  prometheus.Counter
	deliveryDuration  prometheus.Histogram
	scoringCacheHits  prometheus.Counter
	scoringCacheMiss  prometheus.Counter
	scoringFallbacks  prometheus.Counter
	rateLimitRejects  prometheus.Counter
	generationCycles  prometheus.Counter
	generationSeconds prometheus.Histogram
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_signals_generated_total",
			Help: "Total number of signals generated",
		},
		[]string{"source", "type"},
	)
	r.signalsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_signals_expired_total",
			Help: "Total number of signals expired by the lifecycle sweep",
		},
	)
	r.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_webhook_deliveries_total",
			Help: "Total number of webhook delivery sequences by final status",
		},
		[]string{"status"},
	)
	r.deliveryAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_webhook_attempts_total",
			Help: "Total number of webhook POST attempts",
		},
	)
	r.deliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery sequence duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
	)
	r.scoringCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_scoring_cache_hits_total",
			Help: "Total number of news scoring cache hits",
		},
	)
	r.scoringCacheMiss = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_scoring_cache_misses_total",
			Help: "Total number of news scoring cache misses",
		},
	)
	r.scoringFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_scoring_fallbacks_total",
			Help: "Total number of scoring calls resolved by the degraded default",
		},
	)
	r.rateLimitRejects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_rate_limit_rejects_total",
			Help: "Total number of API requests rejected by rate limiting",
		},
	)
	r.generationCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_generation_cycles_total",
			Help: "Total number of batch generation cycles completed",
		},
	)
	r.generationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_generation_duration_seconds",
			Help:    "Batch generation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.signalsExpired)
	reg.MustRegister(r.deliveriesTotal)
	reg.MustRegister(r.deliveryAttempts)
	reg.MustRegister(r.deliveryDuration)
	reg.MustRegister(r.scoringCacheHits)
	reg.MustRegister(r.scoringCacheMiss)
	reg.MustRegister(r.scoringFallbacks)
	reg.MustRegister(r.rateLimitRejects)
	reg.MustRegister(r.generationCycles)
	reg.MustRegister(r.generationSeconds)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(source, signalType string) {
	r.signalsGenerated.WithLabelValues(source, signalType).Inc()
}

// RecordExpired records signals retired by the expiry sweep.
func (r *Registry) RecordExpired(count int) {
	r.signalsExpired.Add(float64(count))
}

// RecordDelivery records the final status of a delivery sequence.
func (r *Registry) RecordDelivery(status string, duration float64) {
	r.deliveriesTotal.WithLabelValues(status).Inc()
	r.deliveryDuration.Observe(duration)
}

// RecordDeliveryAttempt records one webhook POST.
func (r *Registry) RecordDeliveryAttempt() {
	r.deliveryAttempts.Inc()
}

// RecordCacheHit records a scoring cache hit.
func (r *Registry) RecordCacheHit() {
	r.scoringCacheHits.Inc()
}

// RecordCacheMiss records a scoring cache miss.
func (r *Registry) RecordCacheMiss() {
	r.scoringCacheMiss.Inc()
}

// RecordScoringFallback records a scoring call that degraded to the
// neutral default.
func (r *Registry) RecordScoringFallback() {
	r.scoringFallbacks.Inc()
}

// RecordRateLimitReject records a request rejected for quota.
func (r *Registry) RecordRateLimitReject() {
	r.rateLimitRejects.Inc()
}

// RecordGenerationCycle records a batch generation cycle completion.
func (r *Registry) RecordGenerationCycle(duration float64) {
	r.generationCycles.Inc()
	r.generationSeconds.Observe(duration)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
