package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const instrumentationName = "github.com/erain9/tradeshield"

// Init configures a global meter provider exporting to stdout and
// returns its shutdown function.
func Init(serviceName string, interval time.Duration) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}

	resource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

var (
	// shieldMetrics holds the singleton instance
	shieldMetrics *ShieldMetrics
)

// ShieldMetrics holds metrics for pending-order operations
type ShieldMetrics struct {
	ordersCreated     metric.Int64Counter
	ordersCanceled    metric.Int64Counter
	ordersExecuted    metric.Int64Counter
	settlementLatency metric.Float64Histogram
}

// GetShieldMetrics returns the ShieldMetrics singleton
func GetShieldMetrics() *ShieldMetrics {
	if shieldMetrics == nil {
		meter := otel.GetMeterProvider().Meter(instrumentationName)

		ordersCreated, err := meter.Int64Counter(
			"tradeshield.orders.created.total",
			metric.WithDescription("Total number of orders created"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &ShieldMetrics{}
		}

		ordersCanceled, err := meter.Int64Counter(
			"tradeshield.orders.canceled.total",
			metric.WithDescription("Total number of orders canceled"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &ShieldMetrics{}
		}

		ordersExecuted, err := meter.Int64Counter(
			"tradeshield.orders.executed.total",
			metric.WithDescription("Total number of orders executed"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &ShieldMetrics{}
		}

		settlementLatency, err := meter.Float64Histogram(
			"tradeshield.settlement.duration",
			metric.WithDescription("Time from order creation to settlement outcome"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return &ShieldMetrics{}
		}

		shieldMetrics = &ShieldMetrics{
			ordersCreated:     ordersCreated,
			ordersCanceled:    ordersCanceled,
			ordersExecuted:    ordersExecuted,
			settlementLatency: settlementLatency,
		}
	}

	return shieldMetrics
}

// RecordOrderCreated increments the created orders counter
func (m *ShieldMetrics) RecordOrderCreated(ctx context.Context, kind, orderType string) {
	if m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.kind", kind),
		attribute.String("order.type", orderType),
	))
}

// RecordOrderCanceled increments the canceled orders counter
func (m *ShieldMetrics) RecordOrderCanceled(ctx context.Context, kind, cause string) {
	if m.ordersCanceled == nil {
		return
	}
	m.ordersCanceled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.kind", kind),
		attribute.String("cancel.cause", cause),
	))
}

// RecordOrderExecuted increments the executed orders counter
func (m *ShieldMetrics) RecordOrderExecuted(ctx context.Context, kind string) {
	if m.ordersExecuted == nil {
		return
	}
	m.ordersExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.kind", kind),
	))
}

// RecordSettlementLatency records the time from creation to outcome
func (m *ShieldMetrics) RecordSettlementLatency(ctx context.Context, seconds float64) {
	if m.settlementLatency == nil {
		return
	}
	m.settlementLatency.Record(ctx, seconds)
}
