package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestInstruments(t *testing.T) (*Instruments, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	in, err := NewInstruments(mp.Meter(MeterName))
	require.NoError(t, err)
	return in, reader
}

// sumOf returns the total of all data points of an int64 sum instrument.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestInstruments_IssuedAndCompleted(t *testing.T) {
	in, reader := newTestInstruments(t)
	ctx := context.Background()

	in.Issued(ctx, KindHost, true)
	in.Issued(ctx, KindHost, true)
	in.Issued(ctx, KindResolve, false)
	in.Completed(ctx, KindHost, "success", true)

	assert.Equal(t, int64(3), sumOf(t, reader, "anchor.operations.issued"))
	assert.Equal(t, int64(1), sumOf(t, reader, "anchor.operations.completed"))
	assert.Equal(t, int64(1), sumOf(t, reader, "anchor.operations.in_flight"))
}

func TestInstruments_PlacedAndBatches(t *testing.T) {
	in, reader := newTestInstruments(t)
	ctx := context.Background()

	in.Placed(ctx)
	in.Placed(ctx)
	in.BatchCompleted(ctx, 2, 3)

	assert.Equal(t, int64(2), sumOf(t, reader, "anchor.placed"))
	assert.Equal(t, int64(1), sumOf(t, reader, "anchor.host_batches.completed"))
}

func TestInstruments_NilIsSafe(t *testing.T) {
	var in *Instruments
	ctx := context.Background()

	assert.NotPanics(t, func() {
		in.Issued(ctx, KindHost, true)
		in.Completed(ctx, KindHost, "failed", true)
		in.Placed(ctx)
		in.BatchCompleted(ctx, 0, 1)
	})
}

func TestProvider_DisabledUsesGlobalMeter(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, p.Meter())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
