// Package observe defines the OpenTelemetry instruments recorded by an
// intake session. Tests build Metrics from an sdk ManualReader provider;
// the binary registers an SDK provider through InitProvider and reads it
// back with Global.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/rbright/meddoc"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	SectionsEntered  metric.Int64Counter
	VoiceCommands    metric.Int64Counter
	FieldEdits       metric.Int64Counter
	AutoAdvances     metric.Int64Counter
	StaleCallbacks   metric.Int64Counter
	Submissions      metric.Int64Counter
	RecognitionDelay metric.Float64Histogram
}

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8}

// NewMetrics creates every instrument on mp's meter.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.SectionsEntered, err = m.Int64Counter("meddoc.section.entered",
		metric.WithDescription("Sections presented, by index and trigger."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCommands, err = m.Int64Counter("meddoc.voice.commands",
		metric.WithDescription("Classified recognition results by command kind."),
	); err != nil {
		return nil, err
	}
	if met.FieldEdits, err = m.Int64Counter("meddoc.field.edits",
		metric.WithDescription("Accepted field values by source."),
	); err != nil {
		return nil, err
	}
	if met.AutoAdvances, err = m.Int64Counter("meddoc.section.auto_advances",
		metric.WithDescription("Advance timers that fired."),
	); err != nil {
		return nil, err
	}
	if met.StaleCallbacks, err = m.Int64Counter("meddoc.callbacks.stale",
		metric.WithDescription("Asynchronous callbacks dropped by the generation guard."),
	); err != nil {
		return nil, err
	}
	if met.Submissions, err = m.Int64Counter("meddoc.submissions",
		metric.WithDescription("Submission attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionDelay, err = m.Float64Histogram("meddoc.recognition.duration",
		metric.WithDescription("Time from arming input to a recognition result."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Global builds Metrics on the process-wide provider, falling back to a
// no-op provider if instrument creation fails.
func Global() *Metrics {
	met, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		met, _ = NewMetrics(noop.NewMeterProvider())
	}
	return met
}

func (m *Metrics) SectionEntered(ctx context.Context, index int, trigger string) {
	if m == nil {
		return
	}
	m.SectionsEntered.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("section", index),
		attribute.String("trigger", trigger),
	))
}

func (m *Metrics) VoiceCommand(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.VoiceCommands.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) FieldEdited(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.FieldEdits.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) AutoAdvanced(ctx context.Context, from int) {
	if m == nil {
		return
	}
	m.AutoAdvances.Add(ctx, 1, metric.WithAttributes(attribute.Int("section", from)))
}

func (m *Metrics) StaleCallback(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.StaleCallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("callback", kind)))
}

func (m *Metrics) Submitted(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecognitionTook(ctx context.Context, d time.Duration, heard bool) {
	if m == nil {
		return
	}
	m.RecognitionDelay.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("heard", heard)))
}
