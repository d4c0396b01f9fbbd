package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

// DefaultGormLoggerConfig logs failures and slow statements only. Lookups that
// miss are routine in the posting paths and stay quiet.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        500 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// GormLogger routes GORM output through zap with request correlation fields.
type GormLogger struct {
	log *zap.Logger
	cfg GormLoggerConfig
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{log: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, threshold gormlogger.LogLevel, lvl zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < threshold {
		return
	}
	if ce := WithContext(ctx, l.log).Check(lvl, "gorm.message"); ce != nil {
		ce.Write(zap.String("detail", fmt.Sprintf(msg, data...)))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	lvl, ok := l.traceLevel(time.Since(begin), err)
	if !ok {
		return
	}
	ce := WithContext(ctx, l.log).Check(lvl, "gorm.query")
	if ce == nil {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.Int64("duration_ms", time.Since(begin).Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// traceLevel maps a finished statement to a zap level, or false when the
// statement is below the configured GORM level.
func (l *GormLogger) traceLevel(elapsed time.Duration, err error) (zapcore.Level, bool) {
	level := l.cfg.Level
	if level <= gormlogger.Silent {
		return 0, false
	}
	if err != nil && level >= gormlogger.Error {
		if errors.Is(err, gormlogger.ErrRecordNotFound) && l.cfg.IgnoreRecordNotFound {
			return 0, false
		}
		return zapcore.ErrorLevel, true
	}
	if l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && level >= gormlogger.Warn {
		return zapcore.WarnLevel, true
	}
	if level >= gormlogger.Info {
		return zapcore.DebugLevel, true
	}
	return 0, false
}

// ParamsFilter keeps bound values out of the SQL text. Tenant names and
// payment references never reach the log.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func operationFromSQL(sql string) string {
	for _, word := range strings.Fields(sql) {
		switch w := strings.ToUpper(strings.Trim(word, "();")); w {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return w
		}
	}
	return "UNKNOWN"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
