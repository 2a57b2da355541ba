package simulator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
)

// Boiler thermal model constants.
const (
	ambientC            = 20.0
	thermalLossPerSec   = 0.001
	heatingCPerKWSecond = 0.002
	MinSetpointC        = 40.0
	MaxSetpointC        = 120.0
	MaxTemperatureC     = 125.0
	MaxPressureBar      = 7.0
)

// Boiler fault codes.
const (
	FaultOverTemperature = "OVER_TEMPERATURE"
	FaultOverPressure    = "OVER_PRESSURE"
)

// BoilerConfig describes a simulated industrial boiler.
type BoilerConfig struct {
	AssetID        string        `json:"asset_id"`
	MaxPowerKW     float64       `json:"max_power_kw"`
	DefaultTargetC float64       `json:"default_target_c"`
	StartupDelay   time.Duration `json:"startup_delay"`
}

func (c BoilerConfig) withDefaults() BoilerConfig {
	if c.AssetID == "" {
		c.AssetID = "boiler-01"
	}
	if c.MaxPowerKW <= 0 {
		c.MaxPowerKW = 200
	}
	if c.DefaultTargetC <= 0 {
		c.DefaultTargetC = 80
	}
	return c
}

// Boiler heats proportionally toward a setpoint and faults when temperature
// or pressure leave the safe envelope.
type Boiler struct {
	cfg BoilerConfig
	m   *asset.Machine
	log logger.Logger
	now func() time.Time

	mu       sync.Mutex
	targetC  float64
	currentC float64
	powerKW  float64
	pressure float64
}

// NewBoiler creates an idle boiler at ambient temperature.
func NewBoiler(cfg BoilerConfig, log logger.Logger, opts ...asset.Option) *Boiler {
	cfg = cfg.withDefaults()
	b := &Boiler{
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      time.Now,
		targetC:  cfg.DefaultTargetC,
		currentC: ambientC,
		pressure: 1,
	}
	hooks := asset.Hooks{
		OnStart: func(ctx context.Context) error { return delay(ctx, cfg.StartupDelay) },
		OnStop:  func(context.Context) error { b.zeroPower(); return nil },
		OnFault: func(context.Context, string) error { b.zeroPower(); return nil },
	}
	b.m = asset.NewMachine(cfg.AssetID, model.AssetIndustrialBoiler, hooks, append([]asset.Option{asset.WithLogger(b.log)}, opts...)...)
	return b
}

func (b *Boiler) zeroPower() {
	b.mu.Lock()
	b.powerKW = 0
	b.mu.Unlock()
}

// Machine returns the lifecycle machine.
func (b *Boiler) Machine() *asset.Machine { return b.m }

// SetTemperature changes the setpoint of a running boiler.
func (b *Boiler) SetTemperature(celsius float64) error {
	if err := requireRunning(b.m, "set_temperature"); err != nil {
		return err
	}
	if math.IsNaN(celsius) || celsius < MinSetpointC || celsius > MaxSetpointC {
		return invalidArg("temperature %.1f°C out of safe range [%.0f, %.0f]", celsius, MinSetpointC, MaxSetpointC)
	}
	b.mu.Lock()
	b.targetC = celsius
	b.mu.Unlock()
	b.log.Infof("boiler %s setpoint %.1f°C", b.cfg.AssetID, celsius)
	return nil
}

// Invoke serves set_temperature.
func (b *Boiler) Invoke(_ context.Context, method string, payload model.Payload) (model.Payload, error) {
	if method != "set_temperature" {
		return nil, ErrUnknownMethod
	}
	target, err := requireFloat(payload, "target_celsius")
	if err != nil {
		return nil, err
	}
	if err := b.SetTemperature(target); err != nil {
		return nil, err
	}
	return model.Payload{"status": "ok", "target_celsius": target}, nil
}

// Tick advances the thermal model. A safety violation faults the machine
// after the model lock is released.
func (b *Boiler) Tick(ctx context.Context, dt time.Duration) {
	secs := dt.Seconds()
	running := b.m.State() == asset.StateRunning

	b.mu.Lock()
	if !running {
		b.currentC -= thermalLossPerSec * (b.currentC - ambientC) * secs
		b.powerKW = 0
	} else if diff := b.targetC - b.currentC; diff > 0.5 {
		b.powerKW = math.Min(1, diff/20) * b.cfg.MaxPowerKW
		b.currentC += heatingCPerKWSecond * b.powerKW * secs
	} else {
		b.powerKW = 0.02 * b.cfg.MaxPowerKW
		b.currentC = math.Max(ambientC, b.currentC-thermalLossPerSec*(b.currentC-ambientC)*secs)
	}
	b.pressure = 1 + (b.currentC-ambientC)*0.05
	fault := ""
	if running {
		switch {
		case b.currentC > MaxTemperatureC:
			fault = FaultOverTemperature
		case b.pressure > MaxPressureBar:
			fault = FaultOverPressure
		}
	}
	b.mu.Unlock()

	if fault != "" {
		if err := b.m.Fault(ctx, fault); err != nil {
			b.log.Errorf("boiler %s fault handling: %v", b.cfg.AssetID, err)
		}
	}
}

// Telemetry returns the current telemetry document.
func (b *Boiler) Telemetry() model.Payload {
	h := b.m.Handle()
	b.mu.Lock()
	defer b.mu.Unlock()
	efficiency := 0.0
	if h.State == asset.StateRunning && b.powerKW > 0 {
		efficiency = 0.92
	}
	return model.Payload{
		"asset_id":              h.ID,
		"asset_type":            h.Type,
		"state":                 string(h.State),
		"current_temperature_c": round(b.currentC, 1),
		"target_temperature_c":  round(b.targetC, 1),
		"power_kw":              round(b.powerKW, 2),
		"efficiency":            efficiency,
		"pressure_bar":          round(b.pressure, 2),
		"fault_code":            faultField(h.FaultCode),
		"timestamp":             timestamp(b.now()),
	}
}

// Identity returns the properties reported at startup.
func (b *Boiler) Identity() model.Payload {
	return model.Payload{"asset_id": b.cfg.AssetID, "asset_type": model.AssetIndustrialBoiler, "max_power_kw": b.cfg.MaxPowerKW}
}

// Summary returns the properties reported after each telemetry tick.
func (b *Boiler) Summary() model.Payload {
	st := b.m.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.Payload{"state": string(st), "current_temperature_c": round(b.currentC, 1)}
}

// ApplyDesired applies default_target_c while running. It is ignored otherwise.
func (b *Boiler) ApplyDesired(_ context.Context, patch model.Payload) error {
	if _, present := patch["default_target_c"]; !present || b.m.State() != asset.StateRunning {
		return nil
	}
	v, ok := patch.Float("default_target_c")
	if !ok {
		return invalidArg("default_target_c must be a number")
	}
	return b.SetTemperature(v)
}
