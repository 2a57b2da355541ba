package energy

import "time"

// Record aggregates the energy one asset exchanged with the grid on one day.
type Record struct {
	AssetID      string    `json:"asset_id"`
	Date         time.Time `json:"date"`
	GeneratedKWh float64   `json:"generated_kwh"`
	ConsumedKWh  float64   `json:"consumed_kwh"`
}

// NetKWh is generation minus consumption.
func (r Record) NetKWh() float64 {
	return r.GeneratedKWh - r.ConsumedKWh
}

// SelfSufficiency returns the ratio of generated to consumed energy.
// It is zero when nothing was consumed.
func (r Record) SelfSufficiency() float64 {
	if r.ConsumedKWh == 0 {
		return 0
	}
	return r.GeneratedKWh / r.ConsumedKWh
}
