package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

const instrumentationName = "github.com/pkordes/nemt-dispatch"

// Metrics holds the counters the services record into.
type Metrics struct {
	tripsCreated    metric.Int64Counter
	webhookOutcomes metric.Int64Counter
}

// NewMetrics creates the instruments on mp. A nil mp uses the global provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	trips, err := meter.Int64Counter("nemt.trips.created",
		metric.WithDescription("Trips inserted, by pipeline"),
		metric.WithUnit("{trip}"))
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("nemt.webhook.outcomes",
		metric.WithDescription("Processed webhook deliveries, by outcome"),
		metric.WithUnit("{delivery}"))
	if err != nil {
		return nil, err
	}
	return &Metrics{tripsCreated: trips, webhookOutcomes: outcomes}, nil
}

// TripsCreated adds n trips created by source.
func (m *Metrics) TripsCreated(ctx context.Context, source domain.TripSource, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tripsCreated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", string(source))))
}

// WebhookOutcome counts one processed delivery.
func (m *Metrics) WebhookOutcome(ctx context.Context, outcome domain.WebhookOutcome) {
	if m == nil {
		return
	}
	m.webhookOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome.LogStatus()))))
}

// Tracer returns the tracer services start spans with.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
