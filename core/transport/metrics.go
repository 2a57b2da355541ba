package transport

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the transport collectors. Every series is labelled with the
// owning module so several clients can share one registry.
type Metrics struct {
	publishFailures *prometheus.CounterVec
	callTimeouts    *prometheus.CounterVec
	routingDrops    *prometheus.CounterVec
	pendingCalls    *prometheus.GaugeVec
}

// NewMetrics creates the transport collectors and registers them on reg.
// Collectors already registered by another client are reused. A nil
// registerer defaults to the global Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_transport_publish_failures_total",
			Help: "Fire-and-forget messages that could not be encoded or published",
		}, []string{"module", "reason"}),
		callTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_transport_call_timeouts_total",
			Help: "Method calls that got no response before their deadline",
		}, []string{"module", "target"}),
		routingDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edge_transport_routing_drops_total",
			Help: "Inbound messages dropped because no handler was registered",
		}, []string{"module", "kind"}),
		pendingCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edge_transport_pending_calls",
			Help: "Method calls awaiting a response",
		}, []string{"module"}),
	}
	var err error
	if m.publishFailures, err = register(reg, m.publishFailures); err != nil {
		return nil, err
	}
	if m.callTimeouts, err = register(reg, m.callTimeouts); err != nil {
		return nil, err
	}
	if m.routingDrops, err = register(reg, m.routingDrops); err != nil {
		return nil, err
	}
	if m.pendingCalls, err = register(reg, m.pendingCalls); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) publishFailed(module, reason string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(module, reason).Inc()
}

func (m *Metrics) callTimedOut(module, target string) {
	if m == nil {
		return
	}
	m.callTimeouts.WithLabelValues(module, target).Inc()
}

func (m *Metrics) dropped(module, kind string) {
	if m == nil {
		return
	}
	m.routingDrops.WithLabelValues(module, kind).Inc()
}

func (m *Metrics) pending(module string, n int) {
	if m == nil {
		return
	}
	m.pendingCalls.WithLabelValues(module).Set(float64(n))
}

// PublishFailures is labelled by module and reason (encode or publish).
func (m *Metrics) PublishFailures() *prometheus.CounterVec { return m.publishFailures }

// CallTimeouts is labelled by module and call target.
func (m *Metrics) CallTimeouts() *prometheus.CounterVec { return m.callTimeouts }

// RoutingDrops is labelled by module and message kind.
func (m *Metrics) RoutingDrops() *prometheus.CounterVec { return m.routingDrops }

// PendingCalls is labelled by module.
func (m *Metrics) PendingCalls() *prometheus.GaugeVec { return m.pendingCalls }
