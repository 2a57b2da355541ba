// Package export writes energy records as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/edgegrid/core/energy"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Write dispatches on format.
func Write(w io.Writer, format string, recs []energy.Record) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteJSON writes the records as a JSON array.
func WriteJSON(w io.Writer, recs []energy.Record) error {
	if recs == nil {
		recs = []energy.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes one row per record with a header line.
func WriteCSV(w io.Writer, recs []energy.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"asset_id", "date", "generated_kwh", "consumed_kwh", "net_kwh", "self_sufficiency"}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.AssetID,
			r.Date.Format("2006-01-02"),
			strconv.FormatFloat(r.GeneratedKWh, 'f', 3, 64),
			strconv.FormatFloat(r.ConsumedKWh, 'f', 3, 64),
			strconv.FormatFloat(r.NetKWh(), 'f', 3, 64),
			strconv.FormatFloat(r.SelfSufficiency(), 'f', 3, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
