package strategy

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// ProratedGraduated places full units in ranges but charges each unit only for the share of
// the period it was active. Flat amounts are charged in full for every entered range.
type ProratedGraduated struct {
	tiers     []tier
	freeUnits decimal.Decimal
	rounding  Rounding
}

func NewProratedGraduated(props pricingdomain.GraduatedProperties, rounding Rounding) *ProratedGraduated {
	return &ProratedGraduated{
		tiers:     tiersFromRanges(props.Ranges),
		freeUnits: decimal.Max(props.FreeUnits, decimal.Zero),
		rounding:  rounding,
	}
}

func (g *ProratedGraduated) Model() pricingdomain.ChargeModel { return pricingdomain.ModelGraduated }

type proratedStep struct {
	amount   decimal.Decimal
	position decimal.Decimal
}

func (g *ProratedGraduated) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return g.rounding.zero(agg), nil
	}

	events := lo.Filter(agg.Events, func(e pricingdomain.EventSnapshot, _ int) bool {
		return e.Units.IsPositive()
	})
	if len(events) == 0 {
		return g.applyUniform(agg), nil
	}

	placed := lo.Reduce(events, func(step proratedStep, e pricingdomain.EventSnapshot, _ int) proratedStep {
		end := step.position.Add(e.Units)
		ratio := e.ProratedUnits.Div(e.Units)
		return proratedStep{
			amount:   step.amount.Add(g.perUnitAmount(step.position, end).Mul(ratio)),
			position: end,
		}
	}, proratedStep{amount: decimal.Zero, position: decimal.Zero})

	amount := placed.amount.Add(g.flatAmount(placed.position))
	return g.rounding.result(amount, agg.AggregatedUnits, agg.EventCount), nil
}

// applyUniform spreads the proration evenly when no per-event breakdown is available.
func (g *ProratedGraduated) applyUniform(agg pricingdomain.AggregationResult) pricingdomain.FeeComputationResult {
	full := agg.FullUnits
	if !full.IsPositive() {
		full = agg.AggregatedUnits
	}
	ratio := agg.AggregatedUnits.Div(full)
	amount := g.perUnitAmount(decimal.Zero, full).Mul(ratio).Add(g.flatAmount(full))
	return g.rounding.result(amount, agg.AggregatedUnits, agg.EventCount)
}

// perUnitAmount prices the full units in (start, end] that are not free, without flat amounts.
func (g *ProratedGraduated) perUnitAmount(start, end decimal.Decimal) decimal.Decimal {
	start = decimal.Max(start, g.freeUnits)
	return lo.Reduce(g.tiers, func(sum decimal.Decimal, t tier, _ int) decimal.Decimal {
		return sum.Add(t.perUnit.Mul(t.overlap(start, end)))
	}, decimal.Zero)
}

func (g *ProratedGraduated) flatAmount(full decimal.Decimal) decimal.Decimal {
	return lo.Reduce(g.tiers, func(sum decimal.Decimal, t tier, _ int) decimal.Decimal {
		if t.overlap(g.freeUnits, full).IsPositive() {
			return sum.Add(t.flat)
		}
		return sum
	}, decimal.Zero)
}
