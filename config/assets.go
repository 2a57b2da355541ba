package config

import (
	"time"

	"github.com/kilianp07/edgegrid/simulator"
)

// AssetsConfig holds the simulated asset drivers' settings.
type AssetsConfig struct {
	TelemetryIntervalSeconds int                     `json:"telemetry_interval_seconds"`
	Battery                  simulator.BatteryConfig `json:"battery"`
	Boiler                   simulator.BoilerConfig  `json:"boiler"`
	Solar                    simulator.SolarConfig   `json:"solar"`
}

// Interval is the telemetry period, 10s unless configured.
func (c AssetsConfig) Interval() time.Duration {
	if c.TelemetryIntervalSeconds <= 0 {
		return simulator.DefaultTelemetryInterval
	}
	return time.Duration(c.TelemetryIntervalSeconds) * time.Second
}
