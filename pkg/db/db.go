package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/rentledger/internal/config"
	obslogger "github.com/smallbiznis/rentledger/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(ConfigFrom),
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config Config
	App    config.Config
	Log    *zap.Logger
}

// New opens the process-wide connection pool with zap logging, tracing and
// prometheus connection stats.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormCfg := obslogger.DefaultGormLoggerConfig()
	if p.Config.SlowQuery > 0 {
		gormCfg.SlowThreshold = p.Config.SlowQuery
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(p.Log, gormCfg),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Config.Type, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.Name))); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Config.Name,
		RefreshInterval: 15,
		StartServer:     false,
		Labels:          map[string]string{"service": p.App.AppName},
	})); err != nil {
		return nil, fmt.Errorf("register metrics plugin: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Config.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Config.MaxIdleConn)
	}
	if p.Config.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Config.MaxOpenConn)
	}
	if p.Config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.Config.ConnMaxLifetime) * time.Second)
	}
	if p.Config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.ConnMaxIdleTime) * time.Second)
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			return sqlDB.Close()
		},
	})

	p.Log.Info("database connected",
		zap.String("type", p.Config.Type),
		zap.String("host", p.Config.Host),
		zap.String("name", p.Config.Name),
	)
	return conn, nil
}
