package assets

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kilianp07/edgegrid/core/aggregator"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/registry"
)

func seeded() *registry.Registry {
	reg := registry.New(nil)
	reg.Update(model.Payload{"asset_id": "solar-01", "asset_type": model.AssetSolarInverter, "state": "RUNNING", "power_output_kw": 40.0})
	reg.Update(model.Payload{"asset_id": "battery-01", "asset_type": model.AssetBatteryStorage, "state": "IDLE", "power_kw": 0.0})
	return reg
}

func TestStatusHandler_Basic(t *testing.T) {
	h := NewStatusHandler(seeded())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/assets/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].AssetID != "battery-01" {
		t.Fatalf("unexpected output %#v", out)
	}
}

func TestStatusHandler_Filter(t *testing.T) {
	h := NewStatusHandler(seeded())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/assets/status?type=solar_inverter&state=RUNNING", nil))
	var out []Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].AssetID != "solar-01" || out[0].PowerKW != 40 {
		t.Fatalf("unexpected filter result %#v", out)
	}
}

func TestStatusHandler_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	NewStatusHandler(seeded()).ServeHTTP(rr, httptest.NewRequest("POST", "/api/assets/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestGridHandler(t *testing.T) {
	h := NewGridHandler(seeded(), aggregator.New("edge-device-01", 10))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/grid", nil))
	var out model.AggregatedTelemetry
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AssetCount != 2 || out.GridBalanceKW != 40 || !out.HasAlert(model.AlertGridSurplus) {
		t.Fatalf("unexpected report %#v", out)
	}
}
