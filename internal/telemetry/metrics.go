// Package telemetry provides OpenTelemetry instrumentation for the sync subsystem.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "artifact-sync-service/sync"

// Item results recorded on the items counter.
const (
	ItemResultSynced     = "synced"
	ItemResultFailed     = "failed"
	ItemResultUnresolved = "unresolved"
)

// SyncMetrics holds the OpenTelemetry instruments for reconciliation cycles.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	cycleDuration metric.Float64Histogram
	items         metric.Int64Counter
	skippedCycles metric.Int64Counter
	pendingGauge  metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"artifact_sync_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Counter(
		"artifact_sync_items_total",
		metric.WithDescription("Artifacts processed by sync cycles, by result"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return nil, err
	}

	skippedCycles, err := meter.Int64Counter(
		"artifact_sync_cycles_skipped_total",
		metric.WithDescription("Scheduled ticks skipped because a cycle was still running"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	pendingGauge, err := meter.Int64Gauge(
		"artifact_sync_pending_artifacts",
		metric.WithDescription("Candidates found at the start of the last cycle"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration: cycleDuration,
		items:         items,
		skippedCycles: skippedCycles,
		pendingGauge:  pendingGauge,
	}, nil
}

// RecordCycle records the duration of a finished cycle tagged with its outcome.
func (m *SyncMetrics) RecordCycle(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordItems adds count artifacts under the given result.
func (m *SyncMetrics) RecordItems(ctx context.Context, result string, count int) {
	if m == nil || m.items == nil || count <= 0 {
		return
	}
	m.items.Add(ctx, int64(count), metric.WithAttributes(attribute.String("result", result)))
}

// RecordSkippedCycle counts a tick that found a cycle already in flight.
func (m *SyncMetrics) RecordSkippedCycle(ctx context.Context, trigger string) {
	if m == nil || m.skippedCycles == nil {
		return
	}
	m.skippedCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordPending records the candidate count seen by the latest cycle.
func (m *SyncMetrics) RecordPending(ctx context.Context, count int) {
	if m == nil || m.pendingGauge == nil {
		return
	}
	m.pendingGauge.Record(ctx, int64(count))
}
