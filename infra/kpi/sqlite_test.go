package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/edgegrid/core/energy"
)

func TestSQLiteStoreAccumulates(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "energy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	d := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(energy.Record{AssetID: "solar-01", Date: d.Add(9 * time.Hour), GeneratedKWh: 2}))
	require.NoError(t, s.Add(energy.Record{AssetID: "solar-01", Date: d.Add(13 * time.Hour), GeneratedKWh: 1.5}))
	require.NoError(t, s.Add(energy.Record{AssetID: "solar-01", Date: d.Add(24 * time.Hour), GeneratedKWh: 4}))
	require.NoError(t, s.Add(energy.Record{AssetID: "boiler-01", Date: d, ConsumedKWh: 7}))

	recs, err := s.Query("solar-01", d, d.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, d, recs[0].Date)
	assert.InDelta(t, 3.5, recs[0].GeneratedKWh, 1e-9)
	assert.InDelta(t, 4, recs[1].GeneratedKWh, 1e-9)

	ids, err := s.Assets()
	require.NoError(t, err)
	assert.Equal(t, []string{"boiler-01", "solar-01"}, ids)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	d := energy.Day(time.Now())
	require.NoError(t, s.Add(energy.Record{AssetID: "a", Date: d, ConsumedKWh: 1}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	recs, err := s.Query("a", d, d)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 1, recs[0].ConsumedKWh, 1e-9)
}
