// Package assets exposes the controller's view of the assets over HTTP.
package assets

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/edgegrid/core/aggregator"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/core/registry"
)

// Status is one entry of GET /api/assets/status.
type Status struct {
	AssetID   string        `json:"asset_id"`
	AssetType string        `json:"asset_type"`
	State     string        `json:"state"`
	PowerKW   float64       `json:"power_kw"`
	LastSeen  time.Time     `json:"last_seen"`
	Telemetry model.Payload `json:"telemetry"`
}

// NewStatusHandler returns an HTTP handler exposing the latest snapshot of
// every asset via GET /api/assets/status. The type and state query
// parameters filter the list.
func NewStatusHandler(reg *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		typ := r.URL.Query().Get("type")
		state := r.URL.Query().Get("state")
		out := make([]Status, 0, reg.Count())
		for _, s := range reg.All() {
			if typ != "" && s.AssetType != typ {
				continue
			}
			if state != "" && string(s.State) != state {
				continue
			}
			out = append(out, Status{
				AssetID:   s.AssetID,
				AssetType: s.AssetType,
				State:     string(s.State),
				PowerKW:   s.PowerKW,
				LastSeen:  s.LastSeen,
				Telemetry: s.Raw,
			})
		}
		writeJSON(w, out)
	})
}

// NewGridHandler serves a fresh aggregation via GET /api/grid.
func NewGridHandler(reg *registry.Registry, agg *aggregator.Aggregator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, agg.Compute(reg))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
