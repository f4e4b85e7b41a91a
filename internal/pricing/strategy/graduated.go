package strategy

import (
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Graduated splits units across ranges; each entered range adds its flat amount once.
// Free units are taken from the lowest ranges first.
type Graduated struct {
	tiers     []tier
	freeUnits decimal.Decimal
	rounding  Rounding
}

func NewGraduated(props pricingdomain.GraduatedProperties, rounding Rounding) *Graduated {
	return &Graduated{
		tiers:     tiersFromRanges(props.Ranges),
		freeUnits: props.FreeUnits,
		rounding:  rounding,
	}
}

func (g *Graduated) Model() pricingdomain.ChargeModel { return pricingdomain.ModelGraduated }

func (g *Graduated) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return g.rounding.zero(agg), nil
	}
	step := walkTiers(g.tiers, agg.AggregatedUnits, decimal.Max(g.freeUnits, decimal.Zero))
	return g.rounding.result(step.amount, agg.AggregatedUnits, agg.EventCount), nil
}
