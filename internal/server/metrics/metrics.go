// Package metrics exports auth counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcome labels.
const (
	LoginSuccess          = "success"
	LoginInvalid          = "invalid_credentials"
	LoginLocked           = "locked"
	LoginNotVerified      = "not_verified"
	LoginSuspended        = "suspended"
	LoginSecondFactor     = "second_factor"
	LoginError            = "error"
	RefreshSuccess        = "success"
	RefreshInvalid        = "invalid_token"
	RefreshError          = "error"
	SignupSuccess         = "success"
	SignupDuplicate       = "duplicate"
	SignupValidationError = "validation_error"
	SignupError           = "error"
)

// Metrics holds the auth collectors. Each instance owns its registry so
// several can coexist in one process (tests, embedded servers).
type Metrics struct {
	registry *prometheus.Registry

	SignupsTotal  *prometheus.CounterVec
	LoginsTotal   *prometheus.CounterVec
	RefreshTotal  *prometheus.CounterVec
	LockoutsTotal prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SignupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signups_total",
				Help:      "Signup attempts by result",
			},
			[]string{"result"},
		),
		LoginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		RefreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Token refresh attempts by result",
			},
			[]string{"result"},
		),
		LockoutsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lockouts_total",
				Help:      "Accounts locked after repeated failed logins",
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) Signup(result string)  { m.SignupsTotal.WithLabelValues(result).Inc() }
func (m *Metrics) Login(result string)   { m.LoginsTotal.WithLabelValues(result).Inc() }
func (m *Metrics) Refresh(result string) { m.RefreshTotal.WithLabelValues(result).Inc() }
func (m *Metrics) Lockout()              { m.LockoutsTotal.Inc() }

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves this instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
