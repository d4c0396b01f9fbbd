package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the OTel tracer and meter providers, the ledger instruments
// and the Prometheus scheduler collectors.
var Module = fx.Module("observability",
	fx.Provide(
		FromAppConfig,
		Config.Tracing,
		Config.Metrics,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		func(cfg metrics.Config) *metrics.SchedulerMetrics {
			return metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
		},
	),
	// The tracer provider has no consumer in the graph; forcing it installs
	// the global provider and its shutdown hook.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
