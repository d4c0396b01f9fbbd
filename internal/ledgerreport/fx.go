package ledgerreport

import (
	"github.com/smallbiznis/rentledger/internal/ledgerreport/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledgerreport.service",
	fx.Provide(service.NewService),
)
