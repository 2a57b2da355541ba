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

// Panel model constants.
const (
	tempCoefficient     = 0.004
	referenceEfficiency = 0.18
	tempRisePerWm2      = 0.02
	stcC                = 25.0
)

// SolarConfig describes a simulated inverter.
type SolarConfig struct {
	AssetID      string        `json:"asset_id"`
	MaxPowerKW   float64       `json:"max_power_kw"`
	StartupDelay time.Duration `json:"startup_delay"`
}

func (c SolarConfig) withDefaults() SolarConfig {
	if c.AssetID == "" {
		c.AssetID = "solar-01"
	}
	if c.MaxPowerKW <= 0 {
		c.MaxPowerKW = 100
	}
	return c
}

// Solar simulates an inverter whose output follows irradiance, derated by
// panel temperature and capped by the output target.
type Solar struct {
	cfg        SolarConfig
	m          *asset.Machine
	log        logger.Logger
	now        func() time.Time
	irradiance func(time.Time) float64

	mu         sync.Mutex
	maxPowerKW float64
	targetKW   float64
	powerKW    float64
	tempC      float64
	lastIrr    float64
}

// NewSolar creates an idle inverter.
func NewSolar(cfg SolarConfig, log logger.Logger, opts ...asset.Option) *Solar {
	cfg = cfg.withDefaults()
	s := &Solar{
		cfg:        cfg,
		log:        logger.OrNop(log),
		now:        time.Now,
		irradiance: Irradiance,
		maxPowerKW: cfg.MaxPowerKW,
		targetKW:   cfg.MaxPowerKW,
		tempC:      stcC,
	}
	hooks := asset.Hooks{
		OnStart: func(ctx context.Context) error {
			if err := delay(ctx, cfg.StartupDelay); err != nil {
				return err
			}
			s.mu.Lock()
			s.targetKW = s.maxPowerKW
			s.mu.Unlock()
			return nil
		},
		OnStop:  func(context.Context) error { s.shutOff(); return nil },
		OnFault: func(context.Context, string) error { s.shutOff(); return nil },
	}
	s.m = asset.NewMachine(cfg.AssetID, model.AssetSolarInverter, hooks, append([]asset.Option{asset.WithLogger(s.log)}, opts...)...)
	return s
}

func (s *Solar) shutOff() {
	s.mu.Lock()
	s.powerKW = 0
	s.targetKW = 0
	s.mu.Unlock()
}

// Machine returns the lifecycle machine.
func (s *Solar) Machine() *asset.Machine { return s.m }

// SetOutput sets the output target, clamped to [0, max power].
func (s *Solar) SetOutput(targetKW float64) (float64, error) {
	if math.IsNaN(targetKW) {
		return 0, invalidArg("target_kw is not a number")
	}
	s.mu.Lock()
	if err := requireRunning(s.m, "set_output"); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.targetKW = math.Max(0, math.Min(targetKW, s.maxPowerKW))
	applied := s.targetKW
	s.mu.Unlock()
	s.log.Infof("solar %s output target %.2fkW", s.cfg.AssetID, applied)
	return applied, nil
}

// Invoke serves set_output.
func (s *Solar) Invoke(_ context.Context, method string, payload model.Payload) (model.Payload, error) {
	if method != "set_output" {
		return nil, ErrUnknownMethod
	}
	target, err := requireFloat(payload, "target_kw")
	if err != nil {
		return nil, err
	}
	applied, err := s.SetOutput(target)
	if err != nil {
		return nil, err
	}
	return model.Payload{"status": "ok", "target_kw": applied}, nil
}

// Tick samples irradiance and recomputes the output.
func (s *Solar) Tick(context.Context, time.Duration) {
	running := s.m.State() == asset.StateRunning
	irr := s.irradiance(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIrr = irr
	switch {
	case running && irr > 0:
		s.tempC = stcC + tempRisePerWm2*irr
		eff := panelEfficiency(s.tempC)
		possible := irr / PeakIrradiance * s.maxPowerKW * eff / referenceEfficiency
		s.powerKW = math.Min(s.targetKW, possible)
	case running:
		s.powerKW = 0
	default:
		s.powerKW = 0
		s.tempC = stcC
	}
}

func panelEfficiency(tempC float64) float64 {
	return referenceEfficiency * (1 - tempCoefficient*math.Max(0, tempC-stcC))
}

// Telemetry returns the current telemetry document.
func (s *Solar) Telemetry() model.Payload {
	h := s.m.Handle()
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Payload{
		"asset_id":        h.ID,
		"asset_type":      h.Type,
		"state":           string(h.State),
		"power_output_kw": round(s.powerKW, 2),
		"irradiance_w_m2": round(s.lastIrr, 1),
		"efficiency":      round(panelEfficiency(s.tempC), 4),
		"temperature_c":   round(s.tempC, 1),
		"fault_code":      faultField(h.FaultCode),
		"timestamp":       timestamp(s.now()),
	}
}

// Identity returns the properties reported at startup.
func (s *Solar) Identity() model.Payload {
	return model.Payload{
		"asset_id":     s.cfg.AssetID,
		"asset_type":   model.AssetSolarInverter,
		"max_power_kw": s.cfg.MaxPowerKW,
		"state":        string(s.m.State()),
	}
}

// Summary returns the properties reported after each telemetry tick.
func (s *Solar) Summary() model.Payload {
	st := s.m.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Payload{"state": string(st), "power_output_kw": round(s.powerKW, 2)}
}

// ApplyDesired accepts max_power_kw.
func (s *Solar) ApplyDesired(_ context.Context, patch model.Payload) error {
	if _, present := patch["max_power_kw"]; !present {
		return nil
	}
	v, ok := patch.Float("max_power_kw")
	if !ok || v <= 0 {
		return invalidArg("max_power_kw must be a positive number")
	}
	s.mu.Lock()
	s.maxPowerKW = v
	s.targetKW = math.Min(s.targetKW, v)
	s.mu.Unlock()
	s.log.Infof("solar %s max power set to %.2fkW", s.cfg.AssetID, v)
	return nil
}
