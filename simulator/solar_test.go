package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/model"
)

func TestIrradianceCurve(t *testing.T) {
	assert.Equal(t, 0.0, IrradianceAt(5.99))
	assert.Equal(t, 0.0, IrradianceAt(6))
	assert.Equal(t, 1000.0, IrradianceAt(12))
	assert.Equal(t, 707.1, IrradianceAt(9))
	assert.Equal(t, 0.0, IrradianceAt(18.5))
	assert.Equal(t, 1000.0, Irradiance(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func newSolarAt(irr float64) *Solar {
	s := NewSolar(SolarConfig{AssetID: "pv-01", MaxPowerKW: 100}, nil)
	s.irradiance = func(time.Time) float64 { return irr }
	return s
}

func TestSolarIdleProducesNothing(t *testing.T) {
	s := newSolarAt(1000)
	s.Tick(context.Background(), time.Second)
	assert.Equal(t, 0.0, s.Telemetry()["power_output_kw"])
}

func TestSolarOutputDeratedByTemperature(t *testing.T) {
	s := newSolarAt(1000)
	require.NoError(t, s.Machine().Start(context.Background()))
	s.Tick(context.Background(), time.Second)
	tel := s.Telemetry()
	// panel at 45°C loses 8%
	assert.Equal(t, 92.0, tel["power_output_kw"])
	assert.Equal(t, 45.0, tel["temperature_c"])
	assert.Equal(t, 1000.0, tel["irradiance_w_m2"])
}

func TestSolarSetOutputClamps(t *testing.T) {
	s := newSolarAt(1000)
	_, err := s.SetOutput(10)
	assert.ErrorIs(t, err, asset.ErrInvalidTransition)

	require.NoError(t, s.Machine().Start(context.Background()))
	applied, err := s.SetOutput(500)
	require.NoError(t, err)
	assert.Equal(t, 100.0, applied)
	applied, err = s.SetOutput(-5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, applied)

	resp, err := s.Invoke(context.Background(), "set_output", model.Payload{"target_kw": 30.0})
	require.NoError(t, err)
	assert.Equal(t, 30.0, resp["target_kw"])
	s.Tick(context.Background(), time.Second)
	assert.Equal(t, 30.0, s.Telemetry()["power_output_kw"])
}

func TestSolarStopClearsTarget(t *testing.T) {
	s := newSolarAt(800)
	require.NoError(t, s.Machine().Start(context.Background()))
	require.NoError(t, s.Machine().Stop(context.Background()))
	s.Tick(context.Background(), time.Second)
	assert.Equal(t, 0.0, s.Telemetry()["power_output_kw"])
	assert.Equal(t, 25.0, s.Telemetry()["temperature_c"])

	// restart restores full target
	require.NoError(t, s.Machine().Start(context.Background()))
	s.Tick(context.Background(), time.Second)
	assert.Greater(t, s.Telemetry()["power_output_kw"], 0.0)
}

func TestSolarDesiredMaxPower(t *testing.T) {
	s := newSolarAt(1000)
	require.NoError(t, s.ApplyDesired(context.Background(), model.Payload{"max_power_kw": 50.0}))
	require.NoError(t, s.Machine().Start(context.Background()))
	s.Tick(context.Background(), time.Second)
	assert.Equal(t, 46.0, s.Telemetry()["power_output_kw"])
	assert.Equal(t, 100.0, s.Identity()["max_power_kw"])
}

func TestSolarStopRacingSetOutputKeepsStopped(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		s := newSolarAt(800)
		require.NoError(t, s.Machine().Start(ctx))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Machine().Stop(ctx) }()
		go func() { defer wg.Done(); _, _ = s.SetOutput(30) }()
		wg.Wait()

		require.Equal(t, asset.StateIdle, s.Machine().State())
		s.mu.Lock()
		target := s.targetKW
		s.mu.Unlock()
		require.Equal(t, 0.0, target, "iteration %d", i)
	}
}
