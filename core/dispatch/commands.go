package dispatch

import (
	"context"

	"github.com/kilianp07/edgegrid/core/model"
)

// Method names understood by asset modules.
const (
	MethodStart            = "start"
	MethodStop             = "stop"
	MethodReset            = "reset"
	MethodSetOutput        = "set_output"
	MethodStartCharging    = "start_charging"
	MethodStartDischarging = "start_discharging"
	MethodSetTemperature   = "set_temperature"
)

// Start starts the asset served by module.
func (d *Dispatcher) Start(ctx context.Context, module string) (model.Payload, error) {
	return d.Send(ctx, module, MethodStart, model.Payload{})
}

// Stop stops the asset served by module.
func (d *Dispatcher) Stop(ctx context.Context, module string) (model.Payload, error) {
	return d.Send(ctx, module, MethodStop, model.Payload{})
}

// Reset clears a fault on the asset served by module.
func (d *Dispatcher) Reset(ctx context.Context, module string) (model.Payload, error) {
	return d.Send(ctx, module, MethodReset, model.Payload{})
}

// SetOutput sets the output target of a generation asset.
func (d *Dispatcher) SetOutput(ctx context.Context, module string, targetKW float64) (model.Payload, error) {
	return d.Send(ctx, module, MethodSetOutput, model.Payload{"target_kw": targetKW})
}

// ChargeBattery makes a storage asset absorb powerKW.
func (d *Dispatcher) ChargeBattery(ctx context.Context, module string, powerKW float64) (model.Payload, error) {
	return d.Send(ctx, module, MethodStartCharging, model.Payload{"power_kw": powerKW})
}

// DischargeBattery makes a storage asset deliver powerKW.
func (d *Dispatcher) DischargeBattery(ctx context.Context, module string, powerKW float64) (model.Payload, error) {
	return d.Send(ctx, module, MethodStartDischarging, model.Payload{"power_kw": powerKW})
}

// SetTemperature sets a thermal asset's target temperature.
func (d *Dispatcher) SetTemperature(ctx context.Context, module string, celsius float64) (model.Payload, error) {
	return d.Send(ctx, module, MethodSetTemperature, model.Payload{"target_celsius": celsius})
}
