package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/model"
)

func runningBoiler(t *testing.T) *Boiler {
	t.Helper()
	b := NewBoiler(BoilerConfig{AssetID: "boiler-01", MaxPowerKW: 200, DefaultTargetC: 80}, nil)
	require.NoError(t, b.Machine().Start(context.Background()))
	return b
}

func TestBoilerSetTemperatureRequiresRunning(t *testing.T) {
	b := NewBoiler(BoilerConfig{}, nil)
	err := b.SetTemperature(90)
	assert.ErrorIs(t, err, asset.ErrInvalidTransition)
}

func TestBoilerSetTemperatureRange(t *testing.T) {
	b := runningBoiler(t)
	assert.NoError(t, b.SetTemperature(MinSetpointC))
	assert.NoError(t, b.SetTemperature(MaxSetpointC))
	assert.ErrorIs(t, b.SetTemperature(39.9), asset.ErrInvalidArgument)
	assert.ErrorIs(t, b.SetTemperature(120.1), asset.ErrInvalidArgument)

	resp, err := b.Invoke(context.Background(), "set_temperature", model.Payload{"target_celsius": 95.0})
	require.NoError(t, err)
	assert.Equal(t, 95.0, resp["target_celsius"])
	assert.Equal(t, 95.0, b.Telemetry()["target_temperature_c"])
}

func TestBoilerHeatsTowardSetpoint(t *testing.T) {
	b := runningBoiler(t)
	b.Tick(context.Background(), 10*time.Second)
	tel := b.Telemetry()
	// diff 60°C gives full power
	assert.Equal(t, 200.0, tel["power_kw"])
	assert.Equal(t, 24.0, tel["current_temperature_c"])
	assert.Equal(t, 0.92, tel["efficiency"])
}

func TestBoilerCoolsWhenIdle(t *testing.T) {
	b := NewBoiler(BoilerConfig{}, nil)
	b.currentC = 70
	b.Tick(context.Background(), 10*time.Second)
	assert.InDelta(t, 69.5, b.Telemetry()["current_temperature_c"], 1e-9)
	assert.Equal(t, 0.0, b.Telemetry()["power_kw"])
}

func TestBoilerOverTemperatureFaults(t *testing.T) {
	b := runningBoiler(t)
	b.mu.Lock()
	b.currentC = 126
	b.targetC = 130
	b.mu.Unlock()
	b.Tick(context.Background(), time.Second)
	assert.Equal(t, asset.StateFault, b.Machine().State())
	assert.Equal(t, FaultOverTemperature, b.Machine().FaultCode())
	assert.Equal(t, 0.0, b.Telemetry()["power_kw"])

	require.NoError(t, b.Machine().Reset(context.Background()))
	assert.Equal(t, asset.StateIdle, b.Machine().State())
}

func TestBoilerPressureFollowsTemperature(t *testing.T) {
	b := runningBoiler(t)
	b.mu.Lock()
	b.currentC = 120
	b.targetC = 120
	b.mu.Unlock()
	b.Tick(context.Background(), time.Second)
	assert.Equal(t, asset.StateRunning, b.Machine().State())
	assert.InDelta(t, 6.0, b.Telemetry()["pressure_bar"], 0.01)
}

func TestBoilerDesiredTargetOnlyWhileRunning(t *testing.T) {
	b := NewBoiler(BoilerConfig{DefaultTargetC: 80}, nil)
	require.NoError(t, b.ApplyDesired(context.Background(), model.Payload{"default_target_c": 100.0}))
	assert.Equal(t, 80.0, b.Telemetry()["target_temperature_c"])

	require.NoError(t, b.Machine().Start(context.Background()))
	require.NoError(t, b.ApplyDesired(context.Background(), model.Payload{"default_target_c": 100.0}))
	assert.Equal(t, 100.0, b.Telemetry()["target_temperature_c"])
}
