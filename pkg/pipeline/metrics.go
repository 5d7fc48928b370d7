package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics wraps the otel instruments the queue and summarizer report
// through. The no-op meter (via DefaultMetrics) makes these no-ops so the
// core never hard-depends on a collector being configured, the same way
// Logger defaults to NoOpLogger.
type Metrics struct {
	queueDepth     metric.Int64UpDownCounter
	queueActive    metric.Int64UpDownCounter
	queueCompleted metric.Int64Counter
	queueErrors    metric.Int64Counter
	summaryEmitted metric.Int64Counter
}

// NewMetrics builds instruments from the given meter. Pass
// noop.NewMeterProvider().Meter("") to disable metrics entirely.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}
	m.queueDepth, _ = meter.Int64UpDownCounter("univoice.translation_queue.depth")
	m.queueActive, _ = meter.Int64UpDownCounter("univoice.translation_queue.active")
	m.queueCompleted, _ = meter.Int64Counter("univoice.translation_queue.completed")
	m.queueErrors, _ = meter.Int64Counter("univoice.translation_queue.errors")
	m.summaryEmitted, _ = meter.Int64Counter("univoice.progressive_summary.emitted")
	return m
}

// DefaultMetrics returns a Metrics backed by the no-op meter provider.
func DefaultMetrics() *Metrics {
	return NewMetrics(noop.NewMeterProvider().Meter("univoice"))
}

func (m *Metrics) incQueueDepth(ctx context.Context, delta int64) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}

func (m *Metrics) incQueueActive(ctx context.Context, delta int64) {
	if m == nil || m.queueActive == nil {
		return
	}
	m.queueActive.Add(ctx, delta)
}

func (m *Metrics) incCompleted(ctx context.Context) {
	if m == nil || m.queueCompleted == nil {
		return
	}
	m.queueCompleted.Add(ctx, 1)
}

func (m *Metrics) incErrors(ctx context.Context) {
	if m == nil || m.queueErrors == nil {
		return
	}
	m.queueErrors.Add(ctx, 1)
}

func (m *Metrics) incSummaryEmitted(ctx context.Context) {
	if m == nil || m.summaryEmitted == nil {
		return
	}
	m.summaryEmitted.Add(ctx, 1)
}
