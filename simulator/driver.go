// Package simulator provides simulated asset drivers and the module that
// exposes a driver over a transport.
package simulator

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/model"
)

// ErrUnknownMethod is returned by Invoke for methods a driver does not serve.
var ErrUnknownMethod = errors.New("unknown method")

// Driver is a simulated asset. Lifecycle methods go through Machine; Invoke
// serves the type specific commands.
type Driver interface {
	Machine() *asset.Machine
	Invoke(ctx context.Context, method string, payload model.Payload) (model.Payload, error)
	// Tick advances the simulation by dt.
	Tick(ctx context.Context, dt time.Duration)
	Telemetry() model.Payload
	// Identity is reported once when the module starts.
	Identity() model.Payload
	// Summary is reported after every telemetry publication.
	Summary() model.Payload
	ApplyDesired(ctx context.Context, patch model.Payload) error
}

func round(v float64, places int) float64 { return scalar.Round(v, places) }

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// faultField renders the fault code as JSON null when empty.
func faultField(code string) any {
	if code == "" {
		return nil
	}
	return code
}

// delay waits for d or until ctx is done.
func delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requireRunning rejects op unless the machine is RUNNING.
func requireRunning(m *asset.Machine, op string) error {
	if st := m.State(); st != asset.StateRunning {
		return &asset.TransitionError{Op: op, State: st}
	}
	return nil
}

func requireFloat(p model.Payload, key string) (float64, error) {
	v, ok := p.Float(key)
	if !ok {
		return 0, invalidArg("%s is required", key)
	}
	return v, nil
}
