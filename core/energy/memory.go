package energy

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add accumulates r into the record of its asset and day.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.AssetID] == nil {
		s.data[r.AssetID] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.AssetID][d]
	if rec == nil {
		rec = &Record{AssetID: r.AssetID, Date: d}
		s.data[r.AssetID][d] = rec
	}
	rec.GeneratedKWh += r.GeneratedKWh
	rec.ConsumedKWh += r.ConsumedKWh
	return nil
}

// Query returns records between start and end inclusive, oldest first.
func (s *MemoryStore) Query(assetID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	for d, r := range s.data[assetID] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
