package aggregation

import (
	"github.com/smallbiznis/chargecore/internal/aggregation/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("aggregation.repository",
	fx.Provide(repository.NewRepository),
	fx.Provide(repository.NewProvider),
	fx.Provide(repository.NewRecorder),
)
