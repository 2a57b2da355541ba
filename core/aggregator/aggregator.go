// Package aggregator derives grid level metrics and alerts from registry
// snapshots.
package aggregator

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/registry"
)

// DefaultSurplusThresholdKW is used when no threshold is configured.
const DefaultSurplusThresholdKW = 10.0

// Aggregator computes AggregatedTelemetry. It holds no state between calls.
type Aggregator struct {
	deviceID  string
	threshold float64
	now       func() time.Time
}

// New returns an aggregator. A non positive threshold selects the default.
func New(deviceID string, surplusThresholdKW float64) *Aggregator {
	if surplusThresholdKW <= 0 {
		surplusThresholdKW = DefaultSurplusThresholdKW
	}
	return &Aggregator{deviceID: deviceID, threshold: surplusThresholdKW, now: time.Now}
}

// Threshold returns the configured surplus threshold in kW.
func (a *Aggregator) Threshold() float64 { return a.threshold }

// Compute aggregates the current snapshots of src. Alerts are recomputed from
// scratch: fault alerts in asset id order, then at most one balance alert.
// Thresholds are compared against the unrounded balance.
func (a *Aggregator) Compute(src registry.Source) model.AggregatedTelemetry {
	snaps := src.All()

	var gen, cons []float64
	assets := make(map[string]model.AssetSummary, len(snaps))
	for _, s := range snaps {
		switch {
		case s.PowerKW > 0:
			gen = append(gen, s.PowerKW)
		case s.PowerKW < 0:
			cons = append(cons, math.Abs(s.PowerKW))
		}
		assets[s.AssetID] = model.AssetSummary{State: s.State, PowerKW: s.PowerKW, AssetType: s.AssetType}
	}
	generation := floats.Sum(gen)
	consumption := floats.Sum(cons)
	balance := generation - consumption

	return model.AggregatedTelemetry{
		DeviceID:           a.deviceID,
		Timestamp:          a.now().UTC(),
		TotalGenerationKW:  scalar.Round(generation, 2),
		TotalConsumptionKW: scalar.Round(consumption, 2),
		GridBalanceKW:      scalar.Round(balance, 2),
		AssetCount:         len(snaps),
		Assets:             assets,
		Alerts:             a.alerts(snaps, balance),
	}
}

func (a *Aggregator) alerts(snaps []model.Snapshot, balance float64) []model.GridAlert {
	alerts := []model.GridAlert{}
	for _, s := range snaps {
		if s.State != asset.StateFault {
			continue
		}
		alerts = append(alerts, model.GridAlert{
			Severity: model.SeverityCritical,
			Code:     model.AlertAssetFault,
			Message:  fmt.Sprintf("asset %s (%s) is in FAULT state", s.AssetID, s.AssetType),
			AssetID:  s.AssetID,
		})
	}
	switch {
	case balance > a.threshold:
		alerts = append(alerts, model.GridAlert{
			Severity: model.SeverityWarning,
			Code:     model.AlertGridSurplus,
			Message:  fmt.Sprintf("grid surplus of %.1f kW, consider charging storage or curtailing solar", balance),
		})
	case balance < -a.threshold:
		alerts = append(alerts, model.GridAlert{
			Severity: model.SeverityWarning,
			Code:     model.AlertGridDeficit,
			Message:  fmt.Sprintf("grid deficit of %.1f kW, consider discharging storage", math.Abs(balance)),
		})
	}
	return alerts
}
