// Package app wires configuration into runnable controller and asset modules.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/edgegrid/app/plugins"
	"github.com/kilianp07/edgegrid/config"
	coremon "github.com/kilianp07/edgegrid/core/monitoring"
	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
	inframon "github.com/kilianp07/edgegrid/infra/monitoring"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	broker   *eventbus.Broker
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer
	mon      coremon.Monitor
}

// Option customizes how services are built.
type Option func(*options)

// WithBroker shares an in-process broker between services of one process.
func WithBroker(b *eventbus.Broker) Option {
	return func(o *options) { o.broker = b }
}

// WithRegistry registers and serves metrics from reg instead of the default
// Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.reg, o.gatherer = reg, reg
		}
	}
}

// WithMonitor overrides the Sentry monitor built from configuration.
func WithMonitor(m coremon.Monitor) Option {
	return func(o *options) { o.mon = m }
}

func buildOptions(opts []Option) options {
	o := options{reg: prometheus.DefaultRegisterer, gatherer: prometheus.DefaultGatherer}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) monitor(cfg *config.Config, component string, log logger.Logger) coremon.Monitor {
	if o.mon != nil {
		return o.mon
	}
	m, err := inframon.NewSentryMonitor(cfg.Sentry, component)
	if err != nil {
		log.Warnf("sentry disabled: %v", err)
		return coremon.NopMonitor{}
	}
	return m
}

// newTransport builds the RPC client for module over the configured binding.
func newTransport(module string, cfg *config.Config, o options, extra ...string) (*transport.Client, error) {
	tlog := logger.New("transport").With(map[string]any{"module": module})
	broker := o.broker
	if broker == nil && cfg.Transport.Type == config.TransportLocal {
		broker = eventbus.NewBroker()
	}
	ps, err := plugins.NewPubSub(module, cfg.Transport.Module(), plugins.Env{Broker: broker, Log: tlog})
	if err != nil {
		return nil, err
	}
	tm, err := transport.NewMetrics(o.reg)
	if err != nil {
		return nil, fmt.Errorf("transport metrics: %w", err)
	}
	return transport.NewClient(module, ps,
		transport.WithLogger(tlog),
		transport.WithMetrics(tm),
		transport.WithExtraTopics(extra...),
	), nil
}

func disconnect(tr *transport.Client, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tr.Disconnect(ctx); err != nil {
		log.Warnf("disconnect: %v", err)
	}
}
