package utility

import (
	"github.com/smallbiznis/rentledger/internal/utility/repository"
	"github.com/smallbiznis/rentledger/internal/utility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("utility.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
