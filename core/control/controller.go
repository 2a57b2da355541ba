// Package control runs the controller's balancing and reporting loops.
package control

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/edgegrid/core/aggregator"
	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/monitoring"
	"github.com/kilianp07/edgegrid/core/registry"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

// Defaults applied by New.
const (
	DefaultInterval      = 30 * time.Second
	DefaultStorageModule = "battery-module"
	DefaultMaxCommandKW  = 50.0
	// CloudOutput is the output channel carrying aggregated reports.
	CloudOutput = "cloud"
)

// Commander issues storage commands. dispatch.Dispatcher satisfies it.
type Commander interface {
	ChargeBattery(ctx context.Context, module string, powerKW float64) (model.Payload, error)
	DischargeBattery(ctx context.Context, module string, powerKW float64) (model.Payload, error)
}

// Publisher is the part of the transport used for reporting.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any)
	UpdateReported(ctx context.Context, props model.Payload)
}

// Config of the control loops.
type Config struct {
	DeviceID       string
	Interval       time.Duration
	ReportInterval time.Duration
	StorageModule  string
	MaxCommandKW   float64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = c.Interval
	}
	if c.StorageModule == "" {
		c.StorageModule = DefaultStorageModule
	}
	if c.MaxCommandKW <= 0 {
		c.MaxCommandKW = DefaultMaxCommandKW
	}
	return c
}

// Controller ties registry, aggregator and dispatcher together.
type Controller struct {
	cfg     Config
	reg     *registry.Registry
	agg     *aggregator.Aggregator
	cmd     Commander
	pub     Publisher
	reports *eventbus.TypedBus[model.AggregatedTelemetry]
	mon     monitoring.Monitor
	log     logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = logger.OrNop(l) }
}

// WithMonitor reports faults and loop failures to m.
func WithMonitor(m monitoring.Monitor) Option {
	return func(c *Controller) { c.mon = monitoring.OrNop(m) }
}

// WithReportBus publishes every report on bus.
func WithReportBus(bus *eventbus.TypedBus[model.AggregatedTelemetry]) Option {
	return func(c *Controller) { c.reports = bus }
}

// New creates a controller. pub may be nil when no reporting is wanted.
func New(cfg Config, reg *registry.Registry, agg *aggregator.Aggregator, cmd Commander, pub Publisher, opts ...Option) *Controller {
	c := &Controller{
		cfg: cfg.withDefaults(),
		reg: reg,
		agg: agg,
		cmd: cmd,
		pub: pub,
		mon: monitoring.NopMonitor{},
		log: logger.NopLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// HandleTelemetry feeds inbound data messages into the registry. It is meant
// to be registered with Transport.OnMessage.
func (c *Controller) HandleTelemetry(_ context.Context, channel string, data model.Payload) {
	snap, ok := c.reg.Update(data)
	if !ok {
		return
	}
	c.log.Debugw("telemetry received", map[string]any{"asset_id": snap.AssetID, "state": snap.State, "channel": channel})
}

// Run executes the balancing and reporting loops until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	if c.pub != nil {
		c.pub.UpdateReported(ctx, model.Payload{"device_id": c.cfg.DeviceID, "role": "controller"})
	}
	c.log.Infof("controller running: interval=%s storage=%s", c.cfg.Interval, c.cfg.StorageModule)

	balance := time.NewTicker(c.cfg.Interval)
	defer balance.Stop()
	report := time.NewTicker(c.cfg.ReportInterval)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Infof("controller stopped")
			return
		case <-balance.C:
			c.safely(ctx, "balancing", func(ctx context.Context) { c.Balance(ctx) })
		case <-report.C:
			c.safely(ctx, "reporting", func(ctx context.Context) { c.Report(ctx) })
		}
	}
}

// safely runs one loop iteration and recovers panics so the loop continues.
func (c *Controller) safely(ctx context.Context, loop string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			err := monitoring.PanicError(r)
			c.log.Errorf("%s loop iteration failed: %v", loop, err)
			c.mon.CapturePanic(r, map[string]string{"loop": loop})
		}
	}()
	fn(ctx)
}

// Balance runs one balancing cycle and returns the aggregation it acted on.
// A failed command is logged and the remaining alerts are still handled.
func (c *Controller) Balance(ctx context.Context) model.AggregatedTelemetry {
	agg := c.agg.Compute(c.reg)
	c.log.Infof("grid: generation=%.2fkW consumption=%.2fkW balance=%.2fkW alerts=%d",
		agg.TotalGenerationKW, agg.TotalConsumptionKW, agg.GridBalanceKW, len(agg.Alerts))

	power := math.Min(math.Abs(agg.GridBalanceKW), c.cfg.MaxCommandKW)
	for _, alert := range agg.Alerts {
		if ctx.Err() != nil {
			return agg
		}
		switch alert.Code {
		case model.AlertGridSurplus:
			c.log.Infof("surplus of %.2fkW, charging %s at %.2fkW", agg.GridBalanceKW, c.cfg.StorageModule, power)
			if _, err := c.cmd.ChargeBattery(ctx, c.cfg.StorageModule, power); err != nil {
				c.log.Warnf("could not charge %s: %v", c.cfg.StorageModule, err)
			}
		case model.AlertGridDeficit:
			c.log.Infof("deficit of %.2fkW, discharging %s at %.2fkW", -agg.GridBalanceKW, c.cfg.StorageModule, power)
			if _, err := c.cmd.DischargeBattery(ctx, c.cfg.StorageModule, power); err != nil {
				c.log.Warnf("could not discharge %s: %v", c.cfg.StorageModule, err)
			}
		case model.AlertAssetFault:
			c.log.Errorf("critical alert: asset %s in fault (%s)", alert.AssetID, alert.Severity)
			c.mon.CaptureException(fmt.Errorf("asset %s fault", alert.AssetID), map[string]string{
				"asset_id": alert.AssetID,
				"severity": string(alert.Severity),
			})
		}
	}
	return agg
}

// Report publishes the current aggregation on the cloud output, updates the
// reported summary and pushes it on the report bus.
func (c *Controller) Report(ctx context.Context) model.AggregatedTelemetry {
	agg := c.agg.Compute(c.reg)
	if c.pub != nil {
		c.pub.Publish(ctx, CloudOutput, agg)
		c.pub.UpdateReported(ctx, model.Payload{
			"asset_count":     agg.AssetCount,
			"grid_balance_kw": agg.GridBalanceKW,
			"active_alerts":   len(agg.Alerts),
		})
	}
	if c.reports != nil {
		c.reports.Publish(agg)
	}
	return agg
}
