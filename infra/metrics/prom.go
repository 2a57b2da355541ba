package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/core/model"
)

// PromSink exposes the latest grid report as Prometheus gauges.
type PromSink struct {
	balance     prometheus.Gauge
	generation  prometheus.Gauge
	consumption prometheus.Gauge
	alerts      prometheus.Gauge
	assets      *prometheus.GaugeVec
	reports     prometheus.Counter
}

// NewPromSink registers report metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.ReportSink, error) {
	s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.balance, err = registerGauge(reg, "edge_grid_balance_kw", "Net grid balance, positive means surplus"); err != nil {
		return nil, err
	}
	if s.generation, err = registerGauge(reg, "edge_grid_generation_kw", "Total generation across assets"); err != nil {
		return nil, err
	}
	if s.consumption, err = registerGauge(reg, "edge_grid_consumption_kw", "Total consumption across assets"); err != nil {
		return nil, err
	}
	if s.alerts, err = registerGauge(reg, "edge_grid_active_alerts", "Number of alerts in the latest report"); err != nil {
		return nil, err
	}

	assets := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "edge_asset_power_kw",
		Help: "Normalized power per asset",
	}, []string{"asset_id", "asset_type", "state"})
	if err := reg.Register(assets); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assets = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	s.assets = assets

	reports := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edge_grid_reports_total",
		Help: "Number of aggregated reports recorded",
	})
	if err := reg.Register(reports); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reports = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	s.reports = reports
	return s, nil
}

func registerGauge(reg prometheus.Registerer, name, help string) (prometheus.Gauge, error) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge), nil
		}
		return nil, err
	}
	return g, nil
}

// RecordReport sets the gauges from r. Per asset series are rebuilt so an
// asset changing state does not leave its previous series behind.
func (s *PromSink) RecordReport(_ context.Context, r model.AggregatedTelemetry) error {
	s.balance.Set(r.GridBalanceKW)
	s.generation.Set(r.TotalGenerationKW)
	s.consumption.Set(r.TotalConsumptionKW)
	s.alerts.Set(float64(len(r.Alerts)))
	s.assets.Reset()
	for id, a := range r.Assets {
		s.assets.WithLabelValues(id, a.AssetType, a.State.String()).Set(a.PowerKW)
	}
	s.reports.Inc()
	return nil
}
