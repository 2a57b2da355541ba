// Package dispatch sends commands to asset modules with bounded retry.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
)

// Caller performs a single method call. transport.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, target, method string, payload model.Payload, timeout time.Duration) (model.Payload, error)
}

// Dispatcher issues method calls and retries failed attempts with a fixed
// delay.
type Dispatcher struct {
	caller  Caller
	cfg     Config
	log     logger.Logger
	metrics *Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.log = logger.OrNop(l) }
}

// WithMetrics records attempts and outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher using cfg, with zero fields replaced by defaults.
func New(caller Caller, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{caller: caller, cfg: cfg.withDefaults(), log: logger.NopLogger{}}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the effective retry policy.
func (d *Dispatcher) Config() Config { return d.cfg }

// Send calls method on module, making up to MaxRetries+1 attempts. It returns
// the response payload of the first successful attempt, or a
// *CommandFailedError wrapping the last failure. Cancelling ctx aborts the
// wait between attempts.
func (d *Dispatcher) Send(ctx context.Context, module, method string, payload model.Payload) (model.Payload, error) {
	start := time.Now()
	attempts := d.cfg.MaxRetries + 1
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := d.caller.Call(ctx, module, method, payload, d.cfg.Timeout)
		d.metrics.attempt(method, err)
		if err == nil {
			d.log.Debugf("%s on %s succeeded on attempt %d", method, module, attempt)
			d.metrics.done(method, true, time.Since(start).Seconds())
			return resp, nil
		}
		last = err
		d.log.Warnf("%s on %s attempt %d/%d failed: %v", method, module, attempt, attempts, err)
		if attempt == attempts {
			break
		}
		if err := d.wait(ctx); err != nil {
			d.metrics.done(method, false, time.Since(start).Seconds())
			return nil, &CommandFailedError{Module: module, Method: method, Attempts: attempt, Err: fmt.Errorf("%w (last error: %v)", err, last)}
		}
	}
	d.metrics.done(method, false, time.Since(start).Seconds())
	return nil, &CommandFailedError{Module: module, Method: method, Attempts: attempts, Err: last}
}

func (d *Dispatcher) wait(ctx context.Context) error {
	t := time.NewTimer(d.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
