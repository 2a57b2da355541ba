package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"gonum.org/v1/gonum/floats/scalar"

	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/infra/logger"
)

// InfluxConfig locates the InfluxDB v2 bucket reports are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes grid reports to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.ReportSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordReport writes one grid_report point and one asset_power point per
// asset in a single request.
func (s *InfluxSink) RecordReport(ctx context.Context, r model.AggregatedTelemetry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, reportPoints(r)...)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func reportPoints(r model.AggregatedTelemetry) []*write.Point {
	pts := []*write.Point{
		write.NewPointWithMeasurement("grid_report").
			AddTag("device_id", r.DeviceID).
			AddField("generation_kw", round3(r.TotalGenerationKW)).
			AddField("consumption_kw", round3(r.TotalConsumptionKW)).
			AddField("balance_kw", round3(r.GridBalanceKW)).
			AddField("asset_count", r.AssetCount).
			AddField("active_alerts", len(r.Alerts)).
			SetTime(r.Timestamp),
	}
	ids := make([]string, 0, len(r.Assets))
	for id := range r.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := r.Assets[id]
		pts = append(pts, write.NewPointWithMeasurement("asset_power").
			AddTag("device_id", r.DeviceID).
			AddTag("asset_id", id).
			AddTag("asset_type", a.AssetType).
			AddTag("state", a.State.String()).
			AddField("power_kw", round3(a.PowerKW)).
			SetTime(r.Timestamp))
	}
	return pts
}

func round3(f float64) float64 {
	return scalar.Round(f, 3)
}
