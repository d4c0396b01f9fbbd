package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes ledger-level instruments. A nil *Metrics is valid and records
// nothing, which keeps service constructors usable in tests.
type Metrics struct {
	invoicesCreated metric.Int64Counter
	ledgerEntries   metric.Int64Counter
	postingFailures metric.Int64Counter
	paymentEvents   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New registers the ledger instruments on provider's meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rentledger"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.invoicesCreated, "rentledger_invoices_created_total", "Invoices created, by type and source."},
		{&m.ledgerEntries, "rentledger_ledger_entries_total", "Journal entries written, by source document."},
		{&m.postingFailures, "rentledger_posting_failures_total", "Posting attempts that left a document pending."},
		{&m.paymentEvents, "rentledger_payment_events_total", "Payments applied and reversed, by method."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("metrics: %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context, invoiceType, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("invoice_type", strings.TrimSpace(invoiceType)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry counts journal entries written, by source document type.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPostingFailure(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.postingFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent counts applied and reversed payments.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, method, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"invoice_type": {},
	"source":       {},
	"source_type":  {},
	"method":       {},
	"event_type":   {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
