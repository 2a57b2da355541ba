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

const (
	batteryEfficiency = 0.95
	SocMin            = 0.05
	SocMax            = 0.95
	batteryAmbientC   = 25.0
)

// BatteryMode is the power flow direction of a running battery.
type BatteryMode string

const (
	ModeIdle        BatteryMode = "idle"
	ModeCharging    BatteryMode = "charging"
	ModeDischarging BatteryMode = "discharging"
)

// BatteryConfig describes a simulated storage system.
type BatteryConfig struct {
	AssetID      string        `json:"asset_id"`
	CapacityKWh  float64       `json:"capacity_kwh"`
	MaxPowerKW   float64       `json:"max_power_kw"`
	InitialSoC   float64       `json:"initial_soc"`
	StartupDelay time.Duration `json:"startup_delay"`
}

func (c BatteryConfig) withDefaults() BatteryConfig {
	if c.AssetID == "" {
		c.AssetID = "battery-01"
	}
	if c.CapacityKWh <= 0 {
		c.CapacityKWh = 500
	}
	if c.MaxPowerKW <= 0 {
		c.MaxPowerKW = 100
	}
	if c.InitialSoC <= 0 || c.InitialSoC > 1 {
		c.InitialSoC = 0.5
	}
	return c
}

// Battery simulates a storage system. Charging and discharging are modes of
// the RUNNING state; a charge or discharge command starts an idle battery.
type Battery struct {
	cfg BatteryConfig
	m   *asset.Machine
	log logger.Logger
	now func() time.Time

	mu         sync.Mutex
	soc        float64
	powerKW    float64 // positive while charging
	tempC      float64
	maxPowerKW float64
	mode       BatteryMode
}

// NewBattery creates an idle battery.
func NewBattery(cfg BatteryConfig, log logger.Logger, opts ...asset.Option) *Battery {
	cfg = cfg.withDefaults()
	b := &Battery{
		cfg:        cfg,
		log:        logger.OrNop(log),
		now:        time.Now,
		soc:        cfg.InitialSoC,
		tempC:      batteryAmbientC,
		maxPowerKW: cfg.MaxPowerKW,
		mode:       ModeIdle,
	}
	hooks := asset.Hooks{
		OnStart: func(ctx context.Context) error { return delay(ctx, cfg.StartupDelay) },
		OnStop:  func(context.Context) error { b.idle(); return nil },
		OnFault: func(context.Context, string) error { b.idle(); return nil },
	}
	b.m = asset.NewMachine(cfg.AssetID, model.AssetBatteryStorage, hooks, append([]asset.Option{asset.WithLogger(b.log)}, opts...)...)
	return b
}

func (b *Battery) idle() {
	b.mu.Lock()
	b.powerKW = 0
	b.mode = ModeIdle
	b.mu.Unlock()
}

// Machine returns the lifecycle machine.
func (b *Battery) Machine() *asset.Machine { return b.m }

// SoC returns the state of charge in [0,1].
func (b *Battery) SoC() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.soc
}

// Mode returns the current power flow mode.
func (b *Battery) Mode() BatteryMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// StartCharging charges at powerKW, capped to the maximum power.
func (b *Battery) StartCharging(ctx context.Context, powerKW float64) (float64, error) {
	return b.setFlow(ctx, "start_charging", ModeCharging, powerKW)
}

// StartDischarging discharges at powerKW, capped to the maximum power.
func (b *Battery) StartDischarging(ctx context.Context, powerKW float64) (float64, error) {
	return b.setFlow(ctx, "start_discharging", ModeDischarging, powerKW)
}

func (b *Battery) setFlow(ctx context.Context, op string, mode BatteryMode, powerKW float64) (float64, error) {
	if powerKW <= 0 || math.IsNaN(powerKW) || math.IsInf(powerKW, 0) {
		return 0, invalidArg("power_kw must be positive, got %v", powerKW)
	}
	switch st := b.m.State(); st {
	case asset.StateFault, asset.StateStopping:
		return 0, &asset.TransitionError{Op: op, State: st}
	}

	b.mu.Lock()
	soc := b.soc
	b.mu.Unlock()
	if mode == ModeCharging && soc >= SocMax {
		return 0, invalidArg("battery is at maximum charge")
	}
	if mode == ModeDischarging && soc <= SocMin {
		return 0, invalidArg("battery is at minimum charge")
	}

	if b.m.State() == asset.StateIdle {
		if err := b.m.Start(ctx); err != nil {
			return 0, err
		}
	}

	// The running check is repeated under b.mu: a concurrent stop sets
	// STOPPING before its hook takes b.mu to clear the flow.
	b.mu.Lock()
	if err := requireRunning(b.m, op); err != nil {
		b.mu.Unlock()
		return 0, err
	}
	applied := math.Min(powerKW, b.maxPowerKW)
	b.mode = mode
	b.powerKW = applied
	if mode == ModeDischarging {
		b.powerKW = -applied
	}
	b.mu.Unlock()
	b.log.Infof("battery %s %s at %.2fkW", b.cfg.AssetID, mode, applied)
	return applied, nil
}

// Invoke serves start_charging and start_discharging.
func (b *Battery) Invoke(ctx context.Context, method string, payload model.Payload) (model.Payload, error) {
	switch method {
	case "start_charging", "start_discharging":
		kw, err := requireFloat(payload, "power_kw")
		if err != nil {
			return nil, err
		}
		if method == "start_charging" {
			applied, err := b.StartCharging(ctx, kw)
			if err != nil {
				return nil, err
			}
			return model.Payload{"status": "charging", "power_kw": applied}, nil
		}
		applied, err := b.StartDischarging(ctx, kw)
		if err != nil {
			return nil, err
		}
		return model.Payload{"status": "discharging", "power_kw": applied}, nil
	}
	return nil, ErrUnknownMethod
}

// Tick integrates the state of charge over dt. Reaching a SoC bound stops
// the power flow.
func (b *Battery) Tick(_ context.Context, dt time.Duration) {
	running := b.m.State() == asset.StateRunning
	b.mu.Lock()
	defer b.mu.Unlock()
	if running {
		b.applyPower(dt)
	}
	b.tempC = batteryAmbientC + 0.05*math.Abs(b.powerKW)
}

// applyPower updates the SoC for the current power over dt. Callers hold b.mu.
func (b *Battery) applyPower(dt time.Duration) {
	hours := dt.Hours()
	if hours <= 0 {
		return
	}
	switch b.mode {
	case ModeCharging:
		stored := b.powerKW * batteryEfficiency * hours
		b.soc = math.Min(SocMax, b.soc+stored/b.cfg.CapacityKWh)
		if b.soc >= SocMax {
			b.powerKW, b.mode = 0, ModeIdle
			b.log.Infof("battery %s fully charged", b.cfg.AssetID)
		}
	case ModeDischarging:
		drawn := math.Abs(b.powerKW) / batteryEfficiency * hours
		b.soc = math.Max(SocMin, b.soc-drawn/b.cfg.CapacityKWh)
		if b.soc <= SocMin {
			b.powerKW, b.mode = 0, ModeIdle
			b.log.Infof("battery %s depleted", b.cfg.AssetID)
		}
	}
}

// Telemetry returns the current telemetry document.
func (b *Battery) Telemetry() model.Payload {
	h := b.m.Handle()
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.Payload{
		"asset_id":          h.ID,
		"asset_type":        h.Type,
		"state":             string(h.State),
		"mode":              string(b.mode),
		"state_of_charge":   round(b.soc, 4),
		"power_kw":          round(b.powerKW, 2),
		"capacity_kwh":      b.cfg.CapacityKWh,
		"energy_stored_kwh": round(b.soc*b.cfg.CapacityKWh, 2),
		"temperature_c":     round(b.tempC, 1),
		"fault_code":        faultField(h.FaultCode),
		"timestamp":         timestamp(b.now()),
	}
}

// Identity returns the properties reported at startup.
func (b *Battery) Identity() model.Payload {
	return model.Payload{"asset_id": b.cfg.AssetID, "asset_type": model.AssetBatteryStorage, "capacity_kwh": b.cfg.CapacityKWh}
}

// Summary returns the properties reported after each telemetry tick.
func (b *Battery) Summary() model.Payload {
	st := b.m.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.Payload{"state": string(st), "state_of_charge": round(b.soc, 4)}
}

// ApplyDesired accepts max_power_kw.
func (b *Battery) ApplyDesired(_ context.Context, patch model.Payload) error {
	if _, present := patch["max_power_kw"]; !present {
		return nil
	}
	v, ok := patch.Float("max_power_kw")
	if !ok || v <= 0 {
		return invalidArg("max_power_kw must be a positive number")
	}
	b.mu.Lock()
	b.maxPowerKW = v
	b.mu.Unlock()
	b.log.Infof("battery %s max power set to %.2fkW", b.cfg.AssetID, v)
	return nil
}
