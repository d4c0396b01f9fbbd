package migration

import (
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module applies migrations during construction so seed hooks registered for
// OnStart always see the schema.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			log.Info("migrations skipped", zap.String("reason", "database_auto_migrate=false"))
			return nil
		}
		return Apply(conn, cfg.DBType)
	}),
)
