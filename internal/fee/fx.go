package fee

import (
	"github.com/smallbiznis/chargecore/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(service.NewService),
)
