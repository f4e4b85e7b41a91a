package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chargecore/internal/aggregation"
	"github.com/smallbiznis/chargecore/internal/billingperiod"
	"github.com/smallbiznis/chargecore/internal/clock"
	"github.com/smallbiznis/chargecore/internal/config"
	"github.com/smallbiznis/chargecore/internal/expression"
	"github.com/smallbiznis/chargecore/internal/fee"
	"github.com/smallbiznis/chargecore/internal/instantfee"
	"github.com/smallbiznis/chargecore/internal/migration"
	"github.com/smallbiznis/chargecore/internal/observability"
	"github.com/smallbiznis/chargecore/internal/pricing"
	"github.com/smallbiznis/chargecore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		aggregation.Module,
		expression.Module,
		pricing.Module,
		billingperiod.Module,
		instantfee.Module,
		fee.Module,

		fx.Invoke(RunPreview),
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
