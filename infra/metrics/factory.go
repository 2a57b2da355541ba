package metrics

import (
	"github.com/kilianp07/edgegrid/core/energy"
	"github.com/kilianp07/edgegrid/core/factory"
	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/infra/kpi"
)

// EnergyConfig selects where the energy ledger is stored. An empty path keeps
// records in memory.
type EnergyConfig struct {
	Path string `json:"path"`
}

// init registers built-in report sinks.
func init() {
	_ = coremetrics.RegisterSink("nop", func(map[string]any) (coremetrics.ReportSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterSink("prometheus", func(map[string]any) (coremetrics.ReportSink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterSink("influx", func(conf map[string]any) (coremetrics.ReportSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterSink("energy", func(conf map[string]any) (coremetrics.ReportSink, error) {
		var c EnergyConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return energy.NewLedger(energy.NewMemoryStore()), nil
		}
		store, err := kpi.NewSQLiteStore(c.Path)
		if err != nil {
			return nil, err
		}
		return energy.NewLedger(store), nil
	})
}
