package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

func TestCountersCarryAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SectionEntered(ctx, 2, "auto")
	m.SectionEntered(ctx, 2, "auto")
	m.Submitted(ctx, "ok")

	sum, ok := findMetric(t, reader, "meddoc.section.entered").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	require.EqualValues(t, 2, sum.DataPoints[0].Value)
	trigger, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("trigger"))
	require.True(t, ok)
	require.Equal(t, "auto", trigger.AsString())

	sub, ok := findMetric(t, reader, "meddoc.submissions").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.EqualValues(t, 1, sub.DataPoints[0].Value)
}

func TestRecognitionHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecognitionTook(context.Background(), 1500*time.Millisecond, true)

	hist, ok := findMetric(t, reader, "meddoc.recognition.duration").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	require.EqualValues(t, 1, hist.DataPoints[0].Count)
	require.InDelta(t, 1.5, hist.DataPoints[0].Sum, 1e-9)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	require.NotPanics(t, func() {
		m.SectionEntered(ctx, 0, "start")
		m.VoiceCommand(ctx, "next")
		m.FieldEdited(ctx, "voice")
		m.AutoAdvanced(ctx, 0)
		m.StaleCallback(ctx, "speech")
		m.Submitted(ctx, "error")
		m.RecognitionTook(ctx, time.Second, false)
	})
}

func TestGlobal(t *testing.T) {
	require.NotNil(t, Global())
}
