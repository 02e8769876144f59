package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the admin API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginTotal        *prometheus.CounterVec
	RecoveryTotal     *prometheus.CounterVec
	MailDeliveryTotal *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catering_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catering_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catering_auth_login_total",
				Help: "Admin login attempts by result",
			},
			[]string{"result"},
		),
		RecoveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catering_auth_recovery_total",
				Help: "Password recovery steps by result",
			},
			[]string{"step", "result"},
		),
		MailDeliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catering_mail_delivery_total",
				Help: "Outbound mail deliveries by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginTotal,
		m.RecoveryTotal,
		m.MailDeliveryTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one finished request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(result).Inc()
}

// RecordRecovery counts a recovery step outcome.
func (m *Metrics) RecordRecovery(step, result string) {
	if m == nil {
		return
	}
	m.RecoveryTotal.WithLabelValues(step, result).Inc()
}

// RecordMailDelivery counts an outbound mail attempt.
func (m *Metrics) RecordMailDelivery(result string) {
	if m == nil {
		return
	}
	m.MailDeliveryTotal.WithLabelValues(result).Inc()
}
