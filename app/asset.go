package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/edgegrid/config"
	"github.com/kilianp07/edgegrid/core/asset"
	coremon "github.com/kilianp07/edgegrid/core/monitoring"
	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
	"github.com/kilianp07/edgegrid/simulator"
)

// Asset kinds accepted by NewAsset.
const (
	KindBattery = "battery"
	KindBoiler  = "boiler"
	KindSolar   = "solar"
)

// Kinds lists the supported asset kinds.
func Kinds() []string {
	k := []string{KindBattery, KindBoiler, KindSolar}
	sort.Strings(k)
	return k
}

// ModuleName is the bus identity of an asset kind, e.g. battery-module.
func ModuleName(kind string) string { return kind + "-module" }

// Asset is a runnable simulated asset module.
type Asset struct {
	kind string
	tr   *transport.Client
	mod  *simulator.Module
	mon  coremon.Monitor
	log  logger.Logger
}

// NewAsset builds the asset module of the given kind from cfg.
func NewAsset(kind string, cfg *config.Config, opts ...Option) (*Asset, error) {
	o := buildOptions(opts)
	name := ModuleName(kind)
	log := logger.New(name)

	tr, err := newTransport(name, cfg, o)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	mopts := []asset.Option{
		asset.WithLogger(log),
		asset.WithObserver(func(id string, from, to asset.State) {
			log.Debugw("state change", map[string]any{"asset_id": id, "from": from, "to": to})
		}),
	}
	var drv simulator.Driver
	switch kind {
	case KindBattery:
		drv = simulator.NewBattery(cfg.Assets.Battery, log, mopts...)
	case KindBoiler:
		drv = simulator.NewBoiler(cfg.Assets.Boiler, log, mopts...)
	case KindSolar:
		drv = simulator.NewSolar(cfg.Assets.Solar, log, mopts...)
	default:
		return nil, fmt.Errorf("unknown asset kind %q (known: %v)", kind, Kinds())
	}

	mon := o.monitor(cfg, name, log)
	mod := simulator.NewModule(drv, tr, cfg.Assets.Interval(),
		simulator.WithModuleLogger(log),
		simulator.WithModuleMonitor(mon),
	)
	return &Asset{kind: kind, tr: tr, mod: mod, mon: mon, log: log}, nil
}

// Kind returns the asset kind.
func (a *Asset) Kind() string { return a.kind }

// Transport exposes the module's transport client.
func (a *Asset) Transport() *transport.Client { return a.tr }

// Module exposes the simulator module.
func (a *Asset) Module() *simulator.Module { return a.mod }

// Run connects and runs the telemetry loop until ctx is cancelled.
func (a *Asset) Run(ctx context.Context) error {
	if err := a.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer disconnect(a.tr, a.log)
	defer a.mon.Flush(shutdownTimeout)
	a.mod.Run(ctx)
	return nil
}
