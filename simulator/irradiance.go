package simulator

import (
	"math"
	"time"
)

// PeakIrradiance is the clear sky irradiance at solar noon in W/m².
const PeakIrradiance = 1000.0

// Irradiance models a sinusoidal day between 06:00 and 18:00 UTC, peaking
// at noon. It returns W/m².
func Irradiance(t time.Time) float64 {
	t = t.UTC()
	hour := float64(t.Hour()) + float64(t.Minute())/60
	return IrradianceAt(hour)
}

// IrradianceAt returns the irradiance for a fractional hour of day.
func IrradianceAt(hour float64) float64 {
	if hour < 6 || hour > 18 {
		return 0
	}
	return round(PeakIrradiance*math.Sin(math.Pi*(hour-6)/12), 1)
}
