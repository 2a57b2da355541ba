// Package registry keeps the latest normalized telemetry snapshot per asset.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
)

// Source is a read-only view of snapshots, consumed by the aggregator.
type Source interface {
	All() []model.Snapshot
}

// Registry stores one snapshot per asset id. It is safe for concurrent use.
type Registry struct {
	log logger.Logger
	now func() time.Time

	mu        sync.RWMutex
	snapshots map[string]model.Snapshot
}

// New creates an empty registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		log:       logger.OrNop(log),
		now:       time.Now,
		snapshots: make(map[string]model.Snapshot),
	}
}

// Update replaces the snapshot of the asset the telemetry belongs to.
// Telemetry without an asset_id is dropped and false is returned.
func (r *Registry) Update(raw model.Payload) (model.Snapshot, bool) {
	id := raw.String("asset_id")
	if id == "" {
		r.log.Warnf("telemetry without asset_id dropped")
		return model.Snapshot{}, false
	}
	typ := raw.String("asset_type")
	seen, ok := raw.Time("timestamp")
	if !ok {
		seen = r.now()
	}
	snap := model.Snapshot{
		AssetID:   id,
		AssetType: typ,
		State:     asset.State(raw.String("state")),
		PowerKW:   NormalizePower(typ, raw),
		LastSeen:  seen,
		Raw:       raw.Clone(),
	}
	r.mu.Lock()
	r.snapshots[id] = snap
	r.mu.Unlock()
	r.log.Debugw("snapshot updated", map[string]any{"asset_id": id, "power_kw": snap.PowerKW, "state": snap.State})
	return snap, true
}

// NormalizePower converts an asset's reported power to the grid convention:
// positive generates, negative consumes. Storage and consumers report
// positive while consuming and are negated.
func NormalizePower(assetType string, raw model.Payload) float64 {
	switch assetType {
	case model.AssetSolarInverter:
		return raw.FloatOr("power_output_kw", 0)
	case model.AssetBatteryStorage, model.AssetIndustrialBoiler:
		return -raw.FloatOr("power_kw", 0)
	default:
		if v, ok := raw.Float("power_kw"); ok {
			return v
		}
		return raw.FloatOr("power_output_kw", 0)
	}
}

// Get returns a copy of the snapshot for id.
func (r *Registry) Get(id string) (model.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[id]
	if ok {
		s.Raw = s.Raw.Clone()
	}
	return s, ok
}

// All returns copies of every snapshot sorted by asset id.
func (r *Registry) All() []model.Snapshot {
	r.mu.RLock()
	out := make([]model.Snapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		s.Raw = s.Raw.Clone()
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Count returns the number of known assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots)
}
