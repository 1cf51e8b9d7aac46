package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status label values shared by callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusinessMetrics records pipeline operations for observability.
//
// Domain examples: "ingest", "processor", "registration".
// Operation examples: "flush", "claim", "recover_stuck", "decide".
type BusinessMetrics interface {
	// RecordOperation counts one operation with its status.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordItems counts the items an operation touched (rows flushed, registrations claimed).
	RecordItems(ctx context.Context, domain, operation, status string, count int)
}

// businessMetrics implements BusinessMetrics using OpenTelemetry metrics.
type businessMetrics struct {
	operationCounter metric.Int64Counter
	itemCounter      metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewBusinessMetrics creates a BusinessMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "lottery").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of pipeline operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	itemCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_items_total", namespace),
		metric.WithDescription("Total number of items handled by pipeline operations"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create item counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of pipeline operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		itemCounter:      itemCounter,
		durationHisto:    durationHisto,
	}, nil
}

// attributes builds the label set shared by every business instrument.
func attributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

// RecordOperation increments the operation counter.
func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1, attributes(domain, operation, status))
}

// RecordDuration records the operation duration in seconds.
func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(), attributes(domain, operation, status))
}

// RecordItems adds count to the item counter. Non-positive counts are ignored.
func (b *businessMetrics) RecordItems(ctx context.Context, domain, operation, status string, count int) {
	if count <= 0 {
		return
	}
	b.itemCounter.Add(ctx, int64(count), attributes(domain, operation, status))
}

// NoOpBusinessMetrics is a no-op implementation of BusinessMetrics for when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

// RecordOperation does nothing.
func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

// RecordDuration does nothing.
func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

// RecordItems does nothing.
func (n *NoOpBusinessMetrics) RecordItems(ctx context.Context, domain, operation, status string, count int) {
}
