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

func TestBatteryChargeAutoStarts(t *testing.T) {
	b := NewBattery(BatteryConfig{AssetID: "bat-01", MaxPowerKW: 50}, nil)
	applied, err := b.StartCharging(context.Background(), 80)
	require.NoError(t, err)
	assert.Equal(t, 50.0, applied)
	assert.Equal(t, asset.StateRunning, b.Machine().State())
	assert.Equal(t, ModeCharging, b.Mode())
	assert.Equal(t, 50.0, b.Telemetry()["power_kw"])
}

func TestBatteryTickIntegratesSoC(t *testing.T) {
	b := NewBattery(BatteryConfig{CapacityKWh: 100, MaxPowerKW: 100, InitialSoC: 0.5}, nil)
	_, err := b.StartCharging(context.Background(), 10)
	require.NoError(t, err)

	b.Tick(context.Background(), time.Hour)
	// 10kW for 1h at 95% into 100kWh
	assert.InDelta(t, 0.595, b.SoC(), 1e-9)

	_, err = b.StartDischarging(context.Background(), 19)
	require.NoError(t, err)
	b.Tick(context.Background(), time.Hour)
	assert.InDelta(t, 0.395, b.SoC(), 1e-9)
	assert.Equal(t, -19.0, b.Telemetry()["power_kw"])
}

func TestBatteryStopsAtBounds(t *testing.T) {
	b := NewBattery(BatteryConfig{CapacityKWh: 10, MaxPowerKW: 100, InitialSoC: 0.9}, nil)
	_, err := b.StartCharging(context.Background(), 100)
	require.NoError(t, err)
	b.Tick(context.Background(), time.Hour)
	assert.Equal(t, SocMax, b.SoC())
	assert.Equal(t, ModeIdle, b.Mode())
	assert.Equal(t, asset.StateRunning, b.Machine().State())

	_, err = b.StartCharging(context.Background(), 1)
	assert.ErrorIs(t, err, asset.ErrInvalidArgument)

	_, err = b.StartDischarging(context.Background(), 100)
	require.NoError(t, err)
	b.Tick(context.Background(), time.Hour)
	assert.Equal(t, SocMin, b.SoC())
	_, err = b.StartDischarging(context.Background(), 1)
	assert.ErrorIs(t, err, asset.ErrInvalidArgument)
}

func TestBatteryRejectsInFault(t *testing.T) {
	b := NewBattery(BatteryConfig{}, nil)
	require.NoError(t, b.Machine().Fault(context.Background(), "CELL_IMBALANCE"))
	_, err := b.StartCharging(context.Background(), 10)
	assert.ErrorIs(t, err, asset.ErrInvalidTransition)
	assert.Equal(t, "CELL_IMBALANCE", b.Telemetry()["fault_code"])
}

func TestBatteryRejectsBadPower(t *testing.T) {
	b := NewBattery(BatteryConfig{}, nil)
	_, err := b.StartCharging(context.Background(), -1)
	assert.ErrorIs(t, err, asset.ErrInvalidArgument)
	_, err = b.Invoke(context.Background(), "start_charging", model.Payload{})
	assert.ErrorIs(t, err, asset.ErrInvalidArgument)
	_, err = b.Invoke(context.Background(), "set_output", model.Payload{"target_kw": 1})
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.Equal(t, asset.StateIdle, b.Machine().State())
}

func TestBatteryStopAndFaultZeroPower(t *testing.T) {
	b := NewBattery(BatteryConfig{}, nil)
	_, err := b.StartDischarging(context.Background(), 10)
	require.NoError(t, err)
	require.NoError(t, b.Machine().Stop(context.Background()))
	assert.Equal(t, ModeIdle, b.Mode())
	assert.Equal(t, 0.0, b.Telemetry()["power_kw"])

	_, err = b.StartCharging(context.Background(), 10)
	require.NoError(t, err)
	require.NoError(t, b.Machine().Fault(context.Background(), "X"))
	assert.Equal(t, 0.0, b.Telemetry()["power_kw"])
}

func TestBatteryDesiredMaxPower(t *testing.T) {
	b := NewBattery(BatteryConfig{MaxPowerKW: 100}, nil)
	require.NoError(t, b.ApplyDesired(context.Background(), model.Payload{"max_power_kw": 20.0}))
	applied, err := b.StartCharging(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 20.0, applied)
	assert.Error(t, b.ApplyDesired(context.Background(), model.Payload{"max_power_kw": "fast"}))
	assert.NoError(t, b.ApplyDesired(context.Background(), model.Payload{"other": 1}))
}

func TestBatteryTelemetryShape(t *testing.T) {
	b := NewBattery(BatteryConfig{AssetID: "bat-01", CapacityKWh: 200, InitialSoC: 0.25}, nil)
	b.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	tel := b.Telemetry()
	assert.Equal(t, "bat-01", tel["asset_id"])
	assert.Equal(t, model.AssetBatteryStorage, tel["asset_type"])
	assert.Equal(t, "IDLE", tel["state"])
	assert.Equal(t, 50.0, tel["energy_stored_kwh"])
	assert.Nil(t, tel["fault_code"])
	assert.Equal(t, "2026-03-01T10:00:00Z", tel["timestamp"])
	assert.Equal(t, model.Payload{"state": "IDLE", "state_of_charge": 0.25}, b.Summary())
}

func TestBatteryStopRacingDischargeLeavesNoFlow(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		b := NewBattery(BatteryConfig{AssetID: "bat-01", MaxPowerKW: 50}, nil)
		require.NoError(t, b.Machine().Start(ctx))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = b.Machine().Stop(ctx) }()
		go func() { defer wg.Done(); _, _ = b.StartDischarging(ctx, 20) }()
		wg.Wait()

		tel := b.Telemetry()
		if b.Machine().State() != asset.StateRunning {
			require.Equal(t, ModeIdle, b.Mode(), "iteration %d", i)
			require.Equal(t, 0.0, tel["power_kw"], "iteration %d", i)
		}
	}
}
