package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/pkordes/nemt-dispatch/internal/domain"
	"github.com/pkordes/nemt-dispatch/internal/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Sum[int64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func valueFor(sum metricdata.Sum[int64], key, value string) int64 {
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := telemetry.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	ctx := context.Background()

	m.TripsCreated(ctx, domain.TripSourceRecurring, 4)
	m.TripsCreated(ctx, domain.TripSourceWebhook, 1)
	m.WebhookOutcome(ctx, domain.OutcomeFiltered{Reason: "keyword"})
	m.WebhookOutcome(ctx, domain.OutcomeFiltered{Reason: "lead time"})
	m.WebhookOutcome(ctx, domain.OutcomeDuplicate{EventID: "evt"})

	got := collect(t, reader)
	assert.Equal(t, int64(4), valueFor(got["nemt.trips.created"], "source", "recurring"))
	assert.Equal(t, int64(1), valueFor(got["nemt.trips.created"], "source", "webhook"))
	assert.Equal(t, int64(2), valueFor(got["nemt.webhook.outcomes"], "outcome", "filtered"))
	assert.Equal(t, int64(1), valueFor(got["nemt.webhook.outcomes"], "outcome", "duplicate"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics

	assert.NotPanics(t, func() {
		m.TripsCreated(context.Background(), domain.TripSourceWebhook, 1)
		m.WebhookOutcome(context.Background(), domain.OutcomeCreated{})
	})
}

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), "", false)

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
