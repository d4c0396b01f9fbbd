package main

import (
	"context"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/audit"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/invoice"
	"github.com/smallbiznis/rentledger/internal/lease"
	"github.com/smallbiznis/rentledger/internal/ledger"
	"github.com/smallbiznis/rentledger/internal/logger"
	"github.com/smallbiznis/rentledger/internal/observability"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/utility"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/redis"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// One-shot run for an external cron: every scheduler job runs once and the
// process exits non-zero when any of them failed.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redis.Module,
		clock.Module,

		// Domain services required by scheduler
		audit.Module,
		lease.Module,
		utility.Module,
		invoice.Module,
		ledger.Module,
		scheduler.Module,

		// No server module!
		fx.Invoke(RunOnce),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

func RunOnce(lc fx.Lifecycle, shutdowner fx.Shutdowner, s *scheduler.Scheduler, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				if err := s.RunOnce(context.Background()); err != nil {
					log.Error("scheduler.run_once.failed", zap.Error(err))
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("scheduler.shutdown.failed", zap.Error(err))
					os.Exit(code)
				}
			}()
			return nil
		},
	})
}
