package query

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("arbor.query")

var (
	memoEvents metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		memoEvents, metricsErr = meter.Int64Counter(
			"query_memo_events_total",
			metric.WithDescription("Memo events by kind, jar, and query"),
		)
	})
	return metricsErr
}

func recordEvent(ctx context.Context, kind EventKind, k key) {
	if err := initMetrics(); err != nil {
		return
	}
	memoEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", kind.String()),
		attribute.String("jar", k.jar),
		attribute.String("query", k.query),
	))
}
