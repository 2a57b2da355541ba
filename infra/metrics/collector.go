package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/edgegrid/core/metrics"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/infra/logger"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

// StartReportCollector subscribes to the report bus and records every report
// in sink. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has stopped.
func StartReportCollector(ctx context.Context, bus *eventbus.TypedBus[model.AggregatedTelemetry], sink coremetrics.ReportSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordReport(ctx, r); err != nil {
					log.Warnf("record report: %v", err)
				}
			}
		}
	}()
	return done
}
