package simulator

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/monitoring"
	"github.com/kilianp07/edgegrid/core/transport"
)

// DefaultTelemetryInterval is used when no interval is configured.
const DefaultTelemetryInterval = 10 * time.Second

// TelemetryOutput is the output channel carrying asset telemetry.
const TelemetryOutput = "telemetry"

// Module exposes a Driver over a transport: lifecycle and driver methods,
// desired property updates and a periodic telemetry loop.
type Module struct {
	drv      Driver
	tr       transport.Transport
	interval time.Duration
	log      logger.Logger
	mon      monitoring.Monitor
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithModuleLogger sets the module logger.
func WithModuleLogger(l logger.Logger) ModuleOption {
	return func(m *Module) { m.log = logger.OrNop(l) }
}

// WithModuleMonitor reports telemetry loop failures to mon.
func WithModuleMonitor(mon monitoring.Monitor) ModuleOption {
	return func(m *Module) { m.mon = monitoring.OrNop(mon) }
}

// NewModule wires drv to tr. Handlers are registered immediately.
func NewModule(drv Driver, tr transport.Transport, interval time.Duration, opts ...ModuleOption) *Module {
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}
	m := &Module{drv: drv, tr: tr, interval: interval, log: logger.NopLogger{}, mon: monitoring.NopMonitor{}}
	for _, o := range opts {
		o(m)
	}
	tr.OnMethod(m.HandleMethod)
	tr.OnTwinUpdate(m.HandleDesired)
	return m
}

// Driver returns the served driver.
func (m *Module) Driver() Driver { return m.drv }

// HandleMethod serves a method invocation and maps errors to status codes.
func (m *Module) HandleMethod(ctx context.Context, req transport.MethodRequest) transport.MethodResponse {
	m.log.Infof("method %s received", req.Name)
	payload, err := m.invoke(ctx, req)
	if err != nil {
		status := StatusFor(err)
		if status == transport.StatusInternal {
			m.log.Errorf("method %s failed: %v", req.Name, err)
		} else {
			m.log.Warnf("method %s rejected: %v", req.Name, err)
		}
		return transport.Fail(status, err)
	}
	return transport.OK(payload)
}

func (m *Module) invoke(ctx context.Context, req transport.MethodRequest) (model.Payload, error) {
	mach := m.drv.Machine()
	switch req.Name {
	case "start":
		if err := mach.Start(ctx); err != nil {
			return nil, err
		}
		return model.Payload{"status": "started", "state": string(mach.State())}, nil
	case "stop":
		if err := mach.Stop(ctx); err != nil {
			return nil, err
		}
		return model.Payload{"status": "stopped", "state": string(mach.State())}, nil
	case "reset":
		if err := mach.Reset(ctx); err != nil {
			return nil, err
		}
		return model.Payload{"status": "reset", "state": string(mach.State())}, nil
	}
	return m.drv.Invoke(ctx, req.Name, req.Payload)
}

// StatusFor translates a driver error into a response status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return transport.StatusOK
	case errors.Is(err, ErrUnknownMethod):
		return transport.StatusNotFound
	case errors.Is(err, asset.ErrInvalidTransition), errors.Is(err, asset.ErrInvalidArgument):
		return transport.StatusConflict
	default:
		return transport.StatusInternal
	}
}

// HandleDesired applies a desired property patch.
func (m *Module) HandleDesired(ctx context.Context, patch model.Payload) {
	m.log.Infof("desired properties updated: %v", patch)
	if err := m.drv.ApplyDesired(ctx, patch); err != nil {
		m.log.Warnf("desired properties rejected: %v", err)
	}
}

// Run reports the driver identity and publishes telemetry every interval
// until ctx is cancelled. The asset is stopped on exit.
func (m *Module) Run(ctx context.Context) {
	m.tr.UpdateReported(ctx, m.drv.Identity())
	m.log.Infof("asset module %s ready", m.drv.Machine().ID())

	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-t.C:
			m.safeStep(ctx)
		}
	}
}

func (m *Module) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.drv.Machine().Stop(ctx); err != nil {
		m.log.Warnf("stop on shutdown: %v", err)
	}
	m.log.Infof("asset module %s stopped", m.drv.Machine().ID())
}

func (m *Module) safeStep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("telemetry loop iteration failed: %v", monitoring.PanicError(r))
			m.mon.CapturePanic(r, map[string]string{"asset_id": m.drv.Machine().ID()})
		}
	}()
	m.Step(ctx, m.interval)
}

// Step advances the simulation by dt, publishes telemetry and updates the
// reported summary.
func (m *Module) Step(ctx context.Context, dt time.Duration) model.Payload {
	m.drv.Tick(ctx, dt)
	tel := m.drv.Telemetry()
	m.tr.Publish(ctx, TelemetryOutput, tel)
	m.tr.UpdateReported(ctx, m.drv.Summary())
	m.log.Debugw("telemetry published", map[string]any{"state": tel["state"]})
	return tel
}
