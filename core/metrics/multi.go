package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/edgegrid/core/model"
)

// MultiSink fans out reports to multiple sinks.
type MultiSink struct {
	Sinks []ReportSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...ReportSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordReport forwards the report to every sink. A failing sink does not
// prevent the others from recording; all errors are joined.
func (m *MultiSink) RecordReport(ctx context.Context, r model.AggregatedTelemetry) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordReport(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
