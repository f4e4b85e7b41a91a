package instantfee

import (
	"github.com/smallbiznis/chargecore/internal/instantfee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("instantfee.service",
	fx.Provide(service.NewService),
)
