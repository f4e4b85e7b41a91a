// Package strategy holds one pricing strategy per charge model. Every strategy is pure and
// returns a zero fee for zero units.
package strategy

import (
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Rounding controls how precise amounts are turned into billable amounts.
type Rounding struct {
	// Precision is the number of minor-unit decimals of the charge currency.
	Precision int32
	// PreciseScale bounds the precise amount kept alongside the rounded one.
	PreciseScale int32
}

func (r Rounding) result(precise, units decimal.Decimal, eventCount int64) pricingdomain.FeeComputationResult {
	precise = precise.Round(r.PreciseScale)
	res := pricingdomain.FeeComputationResult{
		Amount:        precise.Round(r.Precision),
		PreciseAmount: precise,
		Units:         units,
		EventCount:    eventCount,
	}
	if units.IsPositive() {
		res.UnitAmount = res.Amount.Div(units).Round(r.PreciseScale)
	}
	return res
}

func (r Rounding) zero(agg pricingdomain.AggregationResult) pricingdomain.FeeComputationResult {
	return r.result(decimal.Zero, decimal.Zero, agg.EventCount)
}

func hasNoUnits(agg pricingdomain.AggregationResult) bool {
	return !agg.AggregatedUnits.IsPositive()
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)
