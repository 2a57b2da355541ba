// Package kpi persists daily energy records in SQLite.
package kpi

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/edgegrid/core/energy"
)

// SQLiteStore persists energy records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ energy.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS asset_energy (
        asset_id TEXT,
        day INTEGER,
        generated REAL,
        consumed REAL,
        PRIMARY KEY(asset_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or accumulates the record of its asset and day.
func (s *SQLiteStore) Add(r energy.Record) error {
	d := energy.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO asset_energy (asset_id, day, generated, consumed)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(asset_id, day) DO UPDATE SET
            generated = generated + excluded.generated,
            consumed = consumed + excluded.consumed`,
		r.AssetID, d.Unix(), r.GeneratedKWh, r.ConsumedKWh)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(assetID string, start, end time.Time) ([]energy.Record, error) {
	start = energy.Day(start)
	end = energy.Day(end)
	rows, err := s.db.Query(`SELECT asset_id, day, generated, consumed
        FROM asset_energy WHERE asset_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		assetID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []energy.Record
	for rows.Next() {
		var id string
		var ts int64
		var gen, cons float64
		if err := rows.Scan(&id, &ts, &gen, &cons); err != nil {
			return nil, err
		}
		res = append(res, energy.Record{
			AssetID:      id,
			Date:         time.Unix(ts, 0).UTC(),
			GeneratedKWh: gen,
			ConsumedKWh:  cons,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Assets lists every asset with at least one record.
func (s *SQLiteStore) Assets() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT asset_id FROM asset_energy ORDER BY asset_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
