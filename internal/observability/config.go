package observability

import (
	"strings"

	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
)

const defaultServiceName = "rentledger"

// Config is the observability slice of the process config. The zero value is
// usable: exporters disabled, production log behaviour.
type Config struct {
	Service     string
	Environment string
	Version     string
	LogLevel    string

	Export      bool
	Endpoint    string
	Protocol    string
	SampleRatio float64
}

func FromAppConfig(cfg config.Config) Config {
	service := strings.TrimSpace(cfg.AppName)
	if service == "" {
		service = defaultServiceName
	}
	protocol := strings.TrimSpace(cfg.OTLPProtocol)
	if protocol == "" {
		protocol = "grpc"
	}
	return Config{
		Service:     service,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		LogLevel:    strings.TrimSpace(cfg.LogLevel),
		Export:      cfg.OTLPEnabled,
		Endpoint:    strings.TrimSpace(cfg.OTLPEndpoint),
		Protocol:    protocol,
		SampleRatio: cfg.OTLPSampleRatio,
	}
}

// Debug reports whether request logs should carry query strings and every
// request should be logged regardless of status.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.Export,
		ServiceName:      c.Service,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.Endpoint,
		ExporterProtocol: c.Protocol,
		SamplingRatio:    c.SampleRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.Export,
		ExporterEndpoint: c.Endpoint,
		ExporterProtocol: c.Protocol,
		ServiceName:      c.Service,
		Environment:      c.Environment,
	}
}
