package scenarios

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/edgegrid/core/aggregator"
	"github.com/kilianp07/edgegrid/core/control"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/registry"
	"github.com/kilianp07/edgegrid/infra/logger"
)

// recordingCommander records commands and fails them on demand.
type recordingCommander struct {
	mu   sync.Mutex
	fail bool
	got  []Command
}

var errStorageDown = errors.New("storage unreachable")

func (r *recordingCommander) record(method string, kw float64) (model.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, Command{Method: method, PowerKW: kw})
	if r.fail {
		return nil, errStorageDown
	}
	return model.Payload{"status": method}, nil
}

func (r *recordingCommander) ChargeBattery(_ context.Context, _ string, kw float64) (model.Payload, error) {
	return r.record("charge", kw)
}

func (r *recordingCommander) DischargeBattery(_ context.Context, _ string, kw float64) (model.Payload, error) {
	return r.record("discharge", kw)
}

func (r *recordingCommander) take(fail bool) []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	got := r.got
	r.got = nil
	r.fail = fail
	return got
}

func RunScenario(t *testing.T, sc *Scenario) {
	reg := registry.New(logger.NopLogger{})
	agg := aggregator.New("scenario-device", sc.ThresholdKW)
	cmd := &recordingCommander{}
	ctrl := control.New(control.Config{
		StorageModule: sc.StorageModule,
		MaxCommandKW:  sc.MaxCommandKW,
	}, reg, agg, cmd, nil, control.WithLogger(logger.NopLogger{}))

	ctx := context.Background()
	for i, st := range sc.Steps {
		cmd.take(st.FailStore)
		for _, p := range st.Payloads() {
			ctrl.HandleTelemetry(ctx, "telemetry", p)
		}
		res := ctrl.Balance(ctx)
		got := cmd.take(false)

		if st.Expect.BalanceKW != nil {
			assert.InDelta(t, *st.Expect.BalanceKW, res.GridBalanceKW, 0.01, "%s step %d balance", sc.Name, i)
		}
		assert.ElementsMatch(t, st.Expect.Alerts, alertCodes(res), "%s step %d alerts", sc.Name, i)
		assert.Equal(t, st.Expect.Commands, nonNil(got), "%s step %d commands", sc.Name, i)
	}
}

func alertCodes(r model.AggregatedTelemetry) []string {
	out := make([]string, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		out = append(out, string(a.Code))
	}
	sort.Strings(out)
	return out
}

func nonNil(c []Command) []Command {
	if len(c) == 0 {
		return nil
	}
	return c
}
