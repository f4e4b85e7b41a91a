package strategy

import (
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// GraduatedPercentage walks ranges like Graduated, charging a percentage of the value in each range.
type GraduatedPercentage struct {
	tiers    []tier
	rounding Rounding
}

func NewGraduatedPercentage(props pricingdomain.GraduatedPercentageProperties, rounding Rounding) *GraduatedPercentage {
	return &GraduatedPercentage{tiers: tiersFromPercentageRanges(props.Ranges), rounding: rounding}
}

func (g *GraduatedPercentage) Model() pricingdomain.ChargeModel {
	return pricingdomain.ModelGraduatedPercentage
}

func (g *GraduatedPercentage) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return g.rounding.zero(agg), nil
	}
	step := walkTiers(g.tiers, agg.AggregatedUnits, decimal.Zero)
	return g.rounding.result(step.amount, agg.AggregatedUnits, agg.EventCount), nil
}
