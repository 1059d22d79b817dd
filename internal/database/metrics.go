package database

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records store latency for every backend the service talks to.
type Metrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Store operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	m.queryErrors, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Store operations that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_errors counter: %w", err)
	}

	return m, nil
}

// RecordQuery tags the sample with the store (orders, carts, products) and operation.
func (m *Metrics) RecordQuery(ctx context.Context, store, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", operation),
	)
	m.queryDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}
