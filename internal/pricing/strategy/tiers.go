package strategy

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// tier is a range as a half-open interval (lower, upper]. A nil upper is unbounded.
type tier struct {
	lower   decimal.Decimal
	upper   *decimal.Decimal
	perUnit decimal.Decimal
	flat    decimal.Decimal
}

// tierStep accumulates the graduated walk. Each step returns a new value.
type tierStep struct {
	amount  decimal.Decimal
	units   decimal.Decimal
	entered int
}

// lowerBound maps a range's from value to the exclusive lower end of its interval,
// so fractional units between two integer ranges are priced in the upper one.
func lowerBound(from decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return from.Sub(one)
}

func tiersFromRanges(ranges []pricingdomain.TierRange) []tier {
	return lo.Map(ranges, func(r pricingdomain.TierRange, _ int) tier {
		return tier{lower: lowerBound(r.FromValue), upper: r.ToValue, perUnit: r.PerUnitAmount, flat: r.FlatAmount}
	})
}

func tiersFromPercentageRanges(ranges []pricingdomain.PercentageRange) []tier {
	return lo.Map(ranges, func(r pricingdomain.PercentageRange, _ int) tier {
		return tier{lower: lowerBound(r.FromValue), upper: r.ToValue, perUnit: r.Rate.Div(hundred), flat: r.FlatAmount}
	})
}

// overlap returns how many units of the window (start, end] fall inside t.
func (t tier) overlap(start, end decimal.Decimal) decimal.Decimal {
	low := decimal.Max(t.lower, start)
	high := end
	if t.upper != nil {
		high = decimal.Min(*t.upper, end)
	}
	if high.LessThanOrEqual(low) {
		return decimal.Zero
	}
	return high.Sub(low)
}

// contains reports whether units falls in (lower, upper]. The first tier also holds 0.
func (t tier) contains(units decimal.Decimal, first bool) bool {
	if t.upper != nil && units.GreaterThan(*t.upper) {
		return false
	}
	if first {
		return !units.LessThan(t.lower)
	}
	return units.GreaterThan(t.lower)
}

// walkTiers prices the window (free, units] across tiers. Tiers covered only by free units
// are not entered and charge no flat amount.
func walkTiers(tiers []tier, units, free decimal.Decimal) tierStep {
	return lo.Reduce(tiers, func(step tierStep, t tier, _ int) tierStep {
		inTier := t.overlap(free, units)
		if !inTier.IsPositive() {
			return step
		}
		return tierStep{
			amount:  step.amount.Add(t.flat).Add(t.perUnit.Mul(inTier)),
			units:   step.units.Add(inTier),
			entered: step.entered + 1,
		}
	}, tierStep{amount: decimal.Zero, units: decimal.Zero})
}
