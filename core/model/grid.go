package model

import (
	"time"

	"github.com/kilianp07/edgegrid/core/asset"
)

// Asset types reported in telemetry.
const (
	AssetSolarInverter    = "solar_inverter"
	AssetBatteryStorage   = "battery_storage"
	AssetIndustrialBoiler = "industrial_boiler"
)

// Snapshot is the latest telemetry known for one asset. PowerKW is
// normalized: positive contributes generation to the grid, negative
// consumes from it.
type Snapshot struct {
	AssetID   string
	AssetType string
	State     asset.State
	PowerKW   float64
	LastSeen  time.Time
	Raw       Payload
}

// Severity of a grid alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertCode identifies the rule that raised an alert.
type AlertCode string

const (
	AlertGridSurplus AlertCode = "GRID_SURPLUS"
	AlertGridDeficit AlertCode = "GRID_DEFICIT"
	AlertAssetFault  AlertCode = "ASSET_FAULT"
)

// GridAlert is recomputed on every aggregation cycle.
type GridAlert struct {
	Severity Severity  `json:"severity"`
	Code     AlertCode `json:"code"`
	Message  string    `json:"message"`
	AssetID  string    `json:"asset_id,omitempty"`
}

// AssetSummary is the per-asset entry of an aggregated report.
type AssetSummary struct {
	State     asset.State `json:"state"`
	PowerKW   float64     `json:"power_kw"`
	AssetType string      `json:"asset_type"`
}

// AggregatedTelemetry is the grid level view derived from all snapshots.
type AggregatedTelemetry struct {
	DeviceID           string                  `json:"device_id"`
	Timestamp          time.Time               `json:"timestamp"`
	TotalGenerationKW  float64                 `json:"total_generation_kw"`
	TotalConsumptionKW float64                 `json:"total_consumption_kw"`
	GridBalanceKW      float64                 `json:"grid_balance_kw"`
	AssetCount         int                     `json:"asset_count"`
	Assets             map[string]AssetSummary `json:"assets"`
	Alerts             []GridAlert             `json:"alerts"`
}

// HasAlert reports whether an alert with the given code is present.
func (a AggregatedTelemetry) HasAlert(code AlertCode) bool {
	for _, al := range a.Alerts {
		if al.Code == code {
			return true
		}
	}
	return false
}
