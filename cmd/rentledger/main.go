package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/logger"
	"github.com/smallbiznis/rentledger/internal/migration"
	"github.com/smallbiznis/rentledger/internal/observability"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/seed"
	"github.com/smallbiznis/rentledger/internal/server"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/redis"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redis.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// HTTP API with the ledger domains
		server.Module,

		// In-process ticker, enabled with SCHEDULER_ENABLED
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
