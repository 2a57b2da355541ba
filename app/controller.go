package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/edgegrid/api/assets"
	"github.com/kilianp07/edgegrid/config"
	"github.com/kilianp07/edgegrid/core/aggregator"
	"github.com/kilianp07/edgegrid/core/control"
	"github.com/kilianp07/edgegrid/core/dispatch"
	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/core/model"
	coremon "github.com/kilianp07/edgegrid/core/monitoring"
	"github.com/kilianp07/edgegrid/core/registry"
	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
	inframetrics "github.com/kilianp07/edgegrid/infra/metrics"
	"github.com/kilianp07/edgegrid/internal/eventbus"
	"github.com/kilianp07/edgegrid/simulator"
)

// Controller is the runnable controller module.
type Controller struct {
	tr       *transport.Client
	ctrl     *control.Controller
	reg      *registry.Registry
	agg      *aggregator.Aggregator
	reports  *eventbus.TypedBus[model.AggregatedTelemetry]
	sink     coremetrics.ReportSink
	mon      coremon.Monitor
	gatherer prometheus.Gatherer
	promAddr string
	log      logger.Logger
}

// NewController builds the controller from cfg. Unless configured otherwise
// it listens to every module's telemetry output.
func NewController(cfg *config.Config, opts ...Option) (*Controller, error) {
	o := buildOptions(opts)
	log := logger.New("controller")

	extra := cfg.Transport.ExtraTopics
	if len(extra) == 0 {
		extra = []string{transport.OutputTopic("+", simulator.TelemetryOutput)}
	}
	tr, err := newTransport(cfg.Module.ID, cfg, o, extra...)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	dm, err := dispatch.NewMetrics(o.reg)
	if err != nil {
		return nil, fmt.Errorf("dispatch metrics: %w", err)
	}
	disp := dispatch.New(tr, cfg.Controller.DispatchPolicy(),
		dispatch.WithLogger(logger.New("dispatcher")), dispatch.WithMetrics(dm))

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	mon := o.monitor(cfg, "controller", log)
	reg := registry.New(logger.New("registry"))
	agg := aggregator.New(cfg.Module.DeviceID, cfg.Controller.SurplusThresholdKW)
	reports := eventbus.NewTyped[model.AggregatedTelemetry]()
	ctrl := control.New(control.Config{
		DeviceID:       cfg.Module.DeviceID,
		Interval:       cfg.Controller.Interval(),
		ReportInterval: cfg.Controller.ReportInterval(),
		StorageModule:  cfg.Controller.StorageModule,
		MaxCommandKW:   cfg.Controller.MaxCommandKW,
	}, reg, agg, disp, tr,
		control.WithLogger(log),
		control.WithMonitor(mon),
		control.WithReportBus(reports),
	)
	tr.OnMessage(ctrl.HandleTelemetry)

	return &Controller{
		tr:       tr,
		ctrl:     ctrl,
		reg:      reg,
		agg:      agg,
		reports:  reports,
		sink:     sink,
		mon:      mon,
		gatherer: o.gatherer,
		promAddr: cfg.Metrics.PrometheusAddr,
		log:      log,
	}, nil
}

// Transport exposes the controller's transport client.
func (c *Controller) Transport() *transport.Client { return c.tr }

// Registry exposes the telemetry registry.
func (c *Controller) Registry() *registry.Registry { return c.reg }

// Control exposes the balancing loops.
func (c *Controller) Control() *control.Controller { return c.ctrl }

// Routes are the status API handlers served next to /metrics.
func (c *Controller) Routes() []inframetrics.Route {
	return []inframetrics.Route{
		{Pattern: "/api/assets/status", Handler: assets.NewStatusHandler(c.reg)},
		{Pattern: "/api/grid", Handler: assets.NewGridHandler(c.reg, c.agg)},
	}
}

// Run connects, serves metrics and runs the control loops until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer disconnect(c.tr, c.log)
	defer c.mon.Flush(shutdownTimeout)

	collected := inframetrics.StartReportCollector(ctx, c.reports, c.sink, c.log)
	if c.promAddr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, c.promAddr, c.gatherer, c.Routes()...); err != nil {
				c.log.Errorf("prom server: %v", err)
			}
		}()
	}

	c.ctrl.Run(ctx)
	c.reports.Close()
	<-collected
	return nil
}
