package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// observe runs fn inside a span named after the store and operation and records its latency.
func observe(
	ctx context.Context,
	metrics *database.Metrics,
	store, spanName, operation string,
	fn func(context.Context) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := telemetry.StartClientSpan(ctx, spanName, append(attrs,
		attribute.String("db.collection.name", store),
		attribute.String("db.operation", operation),
	)...)

	start := time.Now()
	err := fn(ctx)
	metrics.RecordQuery(ctx, store, operation, time.Since(start), err)

	telemetry.Finish(span, err)
	return err
}
