// Package logger builds the process-wide zap logger.
package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("logger",
	fx.Provide(FromConfig),
	fx.Invoke(flushOnStop),
)

// Options selects the encoder and minimum level.
type Options struct {
	Level  string
	Format string
}

// New builds a logger and installs it as the zap global so package level
// helpers such as zap.L see the same sink.
func New(opts Options) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	if err := zcfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logger: level %q: %w", level, err)
	}

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// FromConfig tags every line with the service identity.
func FromConfig(cfg config.Config) (*zap.Logger, error) {
	log, err := New(Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{zap.String("service", cfg.AppName)}
	if cfg.AppVersion != "" {
		fields = append(fields, zap.String("version", cfg.AppVersion))
	}
	if cfg.Environment != "" {
		fields = append(fields, zap.String("env", cfg.Environment))
	}
	return log.With(fields...), nil
}

func flushOnStop(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.StopHook(func(context.Context) error {
		// Sync on a terminal stderr returns EINVAL; nothing to act on.
		_ = log.Sync()
		return nil
	}))
}
