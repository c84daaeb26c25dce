// Package metrics holds the Prometheus collectors of the session layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "myoutlet_admin"

// Refresh results
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
	RefreshNoToken   = "no_token"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	refreshes       *prometheus.CounterVec
	refreshWaiters  prometheus.Counter
	replays         prometheus.Counter
	guardRedirects  *prometheus.CounterVec
	backendRequests *prometheus.CounterVec
	liveSessions    prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Backend token refresh calls by result",
		}, []string{"result"}),
		refreshWaiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_waiters_total",
			Help:      "Requests that waited on a refresh already in flight",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replayed_requests_total",
			Help:      "Backend requests replayed after a token refresh",
		}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_redirects_total",
			Help:      "Route guard redirects by target",
		}, []string{"target"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend API responses by status code",
		}, []string{"code"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently loaded in memory",
		}),
	}
	m.registry.MustRegister(
		m.refreshes,
		m.refreshWaiters,
		m.replays,
		m.guardRedirects,
		m.backendRequests,
		m.liveSessions,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) RefreshWaiter() {
	if m == nil {
		return
	}
	m.refreshWaiters.Inc()
}

func (m *Metrics) Replay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Metrics) GuardRedirect(target string) {
	if m == nil {
		return
	}
	m.guardRedirects.WithLabelValues(target).Inc()
}

func (m *Metrics) BackendResponse(code string) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(code).Inc()
}

func (m *Metrics) SessionLoaded() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

func (m *Metrics) SessionUnloaded() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}
