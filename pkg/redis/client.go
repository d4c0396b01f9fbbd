// Package redis provides the optional shared Redis client.
package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

// New returns nil when no address is configured; consumers treat a nil client
// as "coordination disabled".
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *goredis.Client {
	if cfg.RedisAddr == "" {
		log.Info("redis disabled")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis.ping.failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
