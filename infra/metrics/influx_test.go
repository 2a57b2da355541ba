package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/edgegrid/core/asset"
	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/core/model"
)

func sampleReport(now time.Time) model.AggregatedTelemetry {
	return model.AggregatedTelemetry{
		DeviceID:           "edge-device-01",
		Timestamp:          now,
		TotalGenerationKW:  80,
		TotalConsumptionKW: 50,
		GridBalanceKW:      30,
		AssetCount:         2,
		Assets: map[string]model.AssetSummary{
			"solar-01":  {State: asset.StateRunning, PowerKW: 80, AssetType: model.AssetSolarInverter},
			"boiler-01": {State: asset.StateRunning, PowerKW: -50, AssetType: model.AssetIndustrialBoiler},
		},
		Alerts: []model.GridAlert{{Severity: model.SeverityWarning, Code: model.AlertGridSurplus}},
	}
}

func TestInfluxSink_RecordReport(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordReport(context.Background(), sampleReport(now)); err != nil {
		t.Fatalf("record error: %v", err)
	}

	grid := write.NewPointWithMeasurement("grid_report").
		AddTag("device_id", "edge-device-01").
		AddField("generation_kw", 80.0).
		AddField("consumption_kw", 50.0).
		AddField("balance_kw", 30.0).
		AddField("asset_count", 2).
		AddField("active_alerts", 1).
		SetTime(now)
	boiler := write.NewPointWithMeasurement("asset_power").
		AddTag("device_id", "edge-device-01").
		AddTag("asset_id", "boiler-01").
		AddTag("asset_type", model.AssetIndustrialBoiler).
		AddTag("state", "RUNNING").
		AddField("power_kw", -50.0).
		SetTime(now)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), body)
	}
	if lines[0] != strings.TrimSpace(write.PointToLineProtocol(grid, time.Nanosecond)) {
		t.Errorf("unexpected grid line: %s", lines[0])
	}
	if lines[1] != strings.TrimSpace(write.PointToLineProtocol(boiler, time.Nanosecond)) {
		t.Errorf("unexpected asset line: %s", lines[1])
	}
	if !strings.Contains(lines[2], "asset_id=solar-01") {
		t.Errorf("assets not sorted: %s", lines[2])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink on failing health check, got %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
