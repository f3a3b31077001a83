// Package metrics exposes Prometheus collectors for instance lifecycle and
// proxy traffic. All methods are safe to call on a nil *Metrics, which
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Proxy request kinds.
const (
	KindHTTP      = "http"
	KindWebSocket = "websocket"
)

// Proxy request outcomes.
const (
	OutcomeForwarded = "forwarded"
	OutcomeDenied    = "denied"
	OutcomeError     = "error"
)

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	instancesCreated prometheus.Counter
	createFailures   *prometheus.CounterVec
	instancesRemoved *prometheus.CounterVec
	proxyRequests    *prometheus.CounterVec
	tunnelsActive    prometheus.Gauge
	cleanupTicks     *prometheus.CounterVec
}

// New creates and registers the ink collectors along with the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		instancesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ink_instances_created_total",
			Help: "Instances created and reachable on a host port.",
		}),
		createFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ink_instance_create_failures_total",
			Help: "Instance creations that failed, by error kind.",
		}, []string{"reason"}),
		instancesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ink_instances_removed_total",
			Help: "Instances removed, by what triggered the removal.",
		}, []string{"trigger"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ink_proxy_requests_total",
			Help: "Requests routed to instances, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		tunnelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ink_tunnels_active",
			Help: "WebSocket tunnels currently relaying.",
		}),
		cleanupTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ink_cleanup_ticks_total",
			Help: "Cleanup sweeps, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.instancesCreated,
		m.createFailures,
		m.instancesRemoved,
		m.proxyRequests,
		m.tunnelsActive,
		m.cleanupTicks,
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InstanceCreated() {
	if m == nil {
		return
	}
	m.instancesCreated.Inc()
}

func (m *Metrics) CreateFailed(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) InstanceRemoved(trigger string) {
	if m == nil {
		return
	}
	m.instancesRemoved.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ProxyRequest(kind, outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(kind, outcome).Inc()
}

// TunnelOpened increments the active tunnel gauge; the returned func
// decrements it and must be called exactly once.
func (m *Metrics) TunnelOpened() func() {
	if m == nil {
		return func() {}
	}
	m.tunnelsActive.Inc()
	return m.tunnelsActive.Dec
}

func (m *Metrics) CleanupTick(result string) {
	if m == nil {
		return
	}
	m.cleanupTicks.WithLabelValues(result).Inc()
}
