package metrics

import (
	"context"

	"github.com/kilianp07/edgegrid/core/model"
)

// ReportSink records aggregated grid reports for observability purposes.
type ReportSink interface {
	RecordReport(ctx context.Context, r model.AggregatedTelemetry) error
}

// NopSink implements ReportSink with a no-op.
type NopSink struct{}

func (NopSink) RecordReport(context.Context, model.AggregatedTelemetry) error { return nil }
