package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Grouped applies a base strategy to every group of the aggregation independently.
// Groups are priced in key order; the total is the sum of the group amounts.
type Grouped struct {
	base     pricingdomain.PricingStrategy
	rounding Rounding
}

func NewGrouped(base pricingdomain.PricingStrategy, rounding Rounding) *Grouped {
	return &Grouped{base: base, rounding: rounding}
}

func (g *Grouped) Model() pricingdomain.ChargeModel { return g.base.Model() }

func (g *Grouped) Apply(agg pricingdomain.AggregationResult, opts pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if len(agg.Groups) == 0 {
		return g.base.Apply(agg, opts)
	}

	groups := make([]pricingdomain.GroupedAggregation, len(agg.Groups))
	copy(groups, agg.Groups)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key.String() < groups[j].Key.String()
	})

	total := pricingdomain.FeeComputationResult{
		Amount:        decimal.Zero,
		PreciseAmount: decimal.Zero,
		Units:         decimal.Zero,
		UnitAmount:    decimal.Zero,
		Groups:        make([]pricingdomain.GroupFee, 0, len(groups)),
	}
	for _, group := range groups {
		fee, err := g.base.Apply(group.Result, opts)
		if err != nil {
			return pricingdomain.FeeComputationResult{}, fmt.Errorf("group %s: %w", group.Key.String(), err)
		}
		total.Amount = total.Amount.Add(fee.Amount)
		total.PreciseAmount = total.PreciseAmount.Add(fee.PreciseAmount)
		total.Units = total.Units.Add(fee.Units)
		total.EventCount += fee.EventCount
		total.Groups = append(total.Groups, pricingdomain.GroupFee{Key: group.Key, Fee: fee})
	}

	if total.Units.IsPositive() {
		total.UnitAmount = total.Amount.Div(total.Units).Round(g.rounding.PreciseScale)
	}
	return total, nil
}
