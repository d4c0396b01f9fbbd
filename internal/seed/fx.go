package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, node *snowflake.Node, log *zap.Logger) {
	if cfg.Bootstrap.OrgID == 0 {
		return
	}
	log = log.Named("seed")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			entity, err := EnsureOrgLedger(ctx, db, node, snowflake.ID(cfg.Bootstrap.OrgID), cfg.Bootstrap.OrgName, cfg.Bootstrap.Currency)
			if err != nil {
				return err
			}
			log.Info("seed.ledger.ready",
				zap.String("org_id", entity.OrgID.String()),
				zap.String("entity_id", entity.ID.String()),
			)
			return nil
		},
	})
}
