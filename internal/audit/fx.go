package audit

import (
	"github.com/smallbiznis/rentledger/internal/audit/repository"
	"github.com/smallbiznis/rentledger/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the audit trail written alongside payment applications and
// reversals.
var Module = fx.Module("audit.trail",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
