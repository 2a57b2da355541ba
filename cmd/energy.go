package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/edgegrid/core/energy"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/infra/kpi"
	"github.com/kilianp07/edgegrid/pkg/export"
)

const dayLayout = "2006-01-02"

var (
	energyDB      string
	energyAssets  []string
	energyFrom    string
	energyTo      string
	energyFormat  string
	energyReports string
)

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Inspect the daily energy ledger",
}

var energyReportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Export daily energy per asset",
	Example: `  edgegrid energy report --db energy.db --from 2025-06-01 --format csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, to, err := dayRange(energyFrom, energyTo)
		if err != nil {
			return err
		}
		store, err := kpi.NewSQLiteStore(energyDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		ids := energyAssets
		if len(ids) == 0 {
			if ids, err = store.Assets(); err != nil {
				return err
			}
		}
		var recs []energy.Record
		for _, id := range ids {
			r, err := store.Query(id, from, to)
			if err != nil {
				return fmt.Errorf("query %s: %w", id, err)
			}
			recs = append(recs, r...)
		}
		return export.Write(cmd.OutOrStdout(), energyFormat, recs)
	},
}

var energyBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay archived grid reports (one JSON object per line) into the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		history, err := readReports(energyReports)
		if err != nil {
			return err
		}
		store, err := kpi.NewSQLiteStore(energyDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		if err := energy.Backfill(cmd.Context(), store, history); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "replayed %d reports\n", len(history))
		return err
	},
}

func dayRange(from, to string) (time.Time, time.Time, error) {
	end := energy.Day(time.Now())
	if to != "" {
		t, err := time.Parse(dayLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		end = t
	}
	start := end
	if from != "" {
		t, err := time.Parse(dayLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is after --to %s", start.Format(dayLayout), end.Format(dayLayout))
	}
	return start, end, nil
}

func readReports(path string) ([]model.AggregatedTelemetry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var out []model.AggregatedTelemetry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r model.AggregatedTelemetry
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

func init() {
	energyCmd.PersistentFlags().StringVar(&energyDB, "db", "energy.db", "SQLite ledger path")
	energyReportCmd.Flags().StringSliceVar(&energyAssets, "asset", nil, "asset ids (default all)")
	energyReportCmd.Flags().StringVar(&energyFrom, "from", "", "first day, YYYY-MM-DD (default --to)")
	energyReportCmd.Flags().StringVar(&energyTo, "to", "", "last day, YYYY-MM-DD (default today)")
	energyReportCmd.Flags().StringVarP(&energyFormat, "format", "f", export.FormatCSV, "csv or json")
	energyBackfillCmd.Flags().StringVar(&energyReports, "reports", "", "file of archived reports")
	_ = energyBackfillCmd.MarkFlagRequired("reports")
	energyCmd.AddCommand(energyReportCmd, energyBackfillCmd)
	rootCmd.AddCommand(energyCmd)
}
