package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source_type", "invoice"),
		attribute.String("lease_id", "456"),
		attribute.String("method", "CASH"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	assert.Equal(t, attribute.Key("source_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("method"), attrs[1].Key)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceCreated(context.Background(), "RENT", "scheduler")
	m.RecordLedgerEntry(context.Background(), "invoice")
	m.RecordPostingFailure(context.Background(), "invoice")
	m.RecordPaymentEvent(context.Background(), "CASH", "applied")
}

func TestRecordLedgerEntry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "rentledger-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLedgerEntry(ctx, "invoice")
	m.RecordLedgerEntry(ctx, "invoice")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "rentledger_ledger_entries_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}
