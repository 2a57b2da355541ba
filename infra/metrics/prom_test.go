package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/edgegrid/core/asset"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

func TestPromSinkRecordsReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordReport(context.Background(), sampleReport(time.Now())))

	assert.Equal(t, 30.0, testutil.ToFloat64(sink.balance))
	assert.Equal(t, 80.0, testutil.ToFloat64(sink.generation))
	assert.Equal(t, 50.0, testutil.ToFloat64(sink.consumption))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.alerts))
	assert.Equal(t, -50.0, testutil.ToFloat64(sink.assets.WithLabelValues("boiler-01", model.AssetIndustrialBoiler, "RUNNING")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.assets))
}

func TestPromSinkDropsStaleAssetSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	r := sampleReport(time.Now())
	require.NoError(t, sink.RecordReport(context.Background(), r))
	r.Assets = map[string]model.AssetSummary{
		"solar-01": {State: asset.StateFault, PowerKW: 0, AssetType: model.AssetSolarInverter},
	}
	require.NoError(t, sink.RecordReport(context.Background(), r))

	assert.Equal(t, 1, testutil.CollectAndCount(sink.assets))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.reports))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordReport(context.Background(), sampleReport(time.Now())))
	assert.Equal(t, 30.0, testutil.ToFloat64(second.balance))
}

func TestReportCollectorRecordsBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	bus := eventbus.NewTyped[model.AggregatedTelemetry]()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartReportCollector(ctx, bus, sink, nil)

	bus.Publish(sampleReport(time.Now()))
	require.Eventually(t, func() bool { return testutil.ToFloat64(sink.reports) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestReportCollectorStopsOnBusClose(t *testing.T) {
	bus := eventbus.NewTyped[model.AggregatedTelemetry]()
	done := StartReportCollector(context.Background(), bus, sampleSinkNop{}, nil)
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

type sampleSinkNop struct{}

func (sampleSinkNop) RecordReport(context.Context, model.AggregatedTelemetry) error { return nil }
