package energy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/edgegrid/core/model"
)

// Ledger is a report sink that integrates each asset's power between two
// consecutive reports and stores the result. The power of the earlier report
// is held over the whole interval.
type Ledger struct {
	store Store

	mu   sync.Mutex
	last map[string]sample
}

type sample struct {
	at      time.Time
	powerKW float64
}

// NewLedger records into store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, last: make(map[string]sample)}
}

// RecordReport implements metrics.ReportSink.
func (l *Ledger) RecordReport(_ context.Context, r model.AggregatedTelemetry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for id, a := range r.Assets {
		prev, ok := l.last[id]
		l.last[id] = sample{at: r.Timestamp, powerKW: a.PowerKW}
		if !ok || !r.Timestamp.After(prev.at) {
			continue
		}
		rec := Integrate(id, prev.powerKW, prev.at, r.Timestamp)
		if err := l.store.Add(rec); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Integrate converts a constant power held from start to end into a record
// dated at start. Positive power is generation, negative is consumption.
func Integrate(assetID string, powerKW float64, start, end time.Time) Record {
	kwh := powerKW * end.Sub(start).Hours()
	rec := Record{AssetID: assetID, Date: Day(start)}
	if kwh >= 0 {
		rec.GeneratedKWh = kwh
	} else {
		rec.ConsumedKWh = -kwh
	}
	return rec
}

// Backfill replays archived reports, oldest first, into store.
func Backfill(ctx context.Context, store Store, history []model.AggregatedTelemetry) error {
	sorted := make([]model.AggregatedTelemetry, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	l := NewLedger(store)
	for _, r := range sorted {
		if err := l.RecordReport(ctx, r); err != nil {
			return fmt.Errorf("report %s: %w", r.Timestamp.Format(time.RFC3339), err)
		}
	}
	return nil
}
