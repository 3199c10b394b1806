// Package metrics exposes payment lifecycle counters and HTTP timings to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payments"

// Recorder implements application.Metrics. Collectors are registered on the registry
// passed to NewRecorder so tests can use a private one.
type Recorder struct {
	registry *prometheus.Registry

	paymentsCreated *prometheus.CounterVec
	captures        *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	refunds         *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		paymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Payments created, by gateway and market",
		}, []string{"gateway", "market"}),
		captures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "PayPal capture attempts, by outcome",
		}, []string{"outcome"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries, by event type and outcome",
		}, []string{"event_type", "outcome"}),
		refunds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund requests, by outcome",
		}, []string{"outcome"}),
		gatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of PayPal API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

func (r *Recorder) PaymentCreated(gateway, market string) {
	r.paymentsCreated.WithLabelValues(gateway, market).Inc()
}

func (r *Recorder) CaptureObserved(outcome string) {
	r.captures.WithLabelValues(outcome).Inc()
}

func (r *Recorder) WebhookObserved(eventType, outcome string) {
	r.webhooks.WithLabelValues(eventType, outcome).Inc()
}

func (r *Recorder) RefundObserved(outcome string) {
	r.refunds.WithLabelValues(outcome).Inc()
}

// ObserveGateway has the shape of paypal.ObserveFunc.
func (r *Recorder) ObserveGateway(operation, outcome string, elapsed time.Duration) {
	r.gatewayDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. The route label is the matched
// ServeMux pattern, so path parameters do not explode cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		r.httpInFlight.Inc()
		defer r.httpInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		r.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		r.httpRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
