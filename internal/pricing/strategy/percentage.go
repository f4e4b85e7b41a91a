package strategy

import (
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Percentage charges Rate percent of the aggregated value plus FixedAmount per paid event.
type Percentage struct {
	props    pricingdomain.PercentageProperties
	rounding Rounding
}

func NewPercentage(props pricingdomain.PercentageProperties, rounding Rounding) *Percentage {
	return &Percentage{props: props, rounding: rounding}
}

func (p *Percentage) Model() pricingdomain.ChargeModel { return pricingdomain.ModelPercentage }

func (p *Percentage) Apply(agg pricingdomain.AggregationResult, opts pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return p.rounding.zero(agg), nil
	}

	units := agg.AggregatedUnits
	paidValue := units.Sub(p.freeValue(agg, opts))
	paidEvents := p.paidEvents(agg.EventCount)

	amount := paidValue.Mul(p.props.Rate).Div(hundred)
	amount = amount.Add(p.props.FixedAmount.Mul(decimal.NewFromInt(paidEvents)))
	if paidValue.IsPositive() {
		amount = p.clamp(amount, agg.EventCount)
	}

	return p.rounding.result(amount, units, agg.EventCount), nil
}

// freeValue is the part of the aggregated value covered by free allowances, at most units.
func (p *Percentage) freeValue(agg pricingdomain.AggregationResult, opts pricingdomain.ApplyOptions) decimal.Decimal {
	perEvents := p.props.FreeUnitsPerEvents
	perTotal := p.props.FreeUnitsPerTotalAggregation

	var free decimal.Decimal
	switch {
	case opts.ExcludeEvent && perEvents != nil && agg.EventCount < *perEvents:
		// every event before the current one is still inside the free allowance
		free = agg.AggregatedUnits
		if perTotal != nil {
			free = decimal.Min(free, *perTotal)
		}
	case perEvents != nil && perTotal != nil:
		free = decimal.Min(agg.FreeUnitsConsumed, *perTotal)
	case perEvents != nil:
		free = agg.FreeUnitsConsumed
	case perTotal != nil:
		free = *perTotal
	default:
		free = decimal.Zero
	}

	return decimal.Min(decimal.Max(free, decimal.Zero), agg.AggregatedUnits)
}

func (p *Percentage) paidEvents(eventCount int64) int64 {
	var freeEvents int64
	if p.props.FreeUnitsPerEvents != nil {
		freeEvents = *p.props.FreeUnitsPerEvents
	}
	if paid := eventCount - freeEvents; paid > 0 {
		return paid
	}
	return 0
}

// clamp applies the per-transaction bounds, scaled by the number of transactions.
func (p *Percentage) clamp(amount decimal.Decimal, eventCount int64) decimal.Decimal {
	transactions := decimal.NewFromInt(max(eventCount, 1))
	if minAmount := p.props.PerTransactionMinAmount; minAmount != nil {
		amount = decimal.Max(amount, minAmount.Mul(transactions))
	}
	if maxAmount := p.props.PerTransactionMaxAmount; maxAmount != nil && maxAmount.IsPositive() {
		amount = decimal.Min(amount, maxAmount.Mul(transactions))
	}
	return amount
}
