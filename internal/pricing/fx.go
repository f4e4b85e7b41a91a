package pricing

import (
	"github.com/smallbiznis/chargecore/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.factory",
	fx.Provide(service.NewFactory),
)
