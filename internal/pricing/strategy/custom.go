package strategy

import (
	"maps"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Custom evaluates one expression over the aggregation and the configured variables.
type Custom struct {
	props     pricingdomain.CustomProperties
	evaluator pricingdomain.Evaluator
	rounding  Rounding
}

func NewCustom(props pricingdomain.CustomProperties, evaluator pricingdomain.Evaluator, rounding Rounding) *Custom {
	return &Custom{props: props, evaluator: evaluator, rounding: rounding}
}

func (c *Custom) Model() pricingdomain.ChargeModel { return pricingdomain.ModelCustom }

func (c *Custom) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return c.rounding.zero(agg), nil
	}
	if c.evaluator == nil {
		return pricingdomain.FeeComputationResult{}, pricingdomain.ErrMissingEvaluator
	}

	params := make(map[string]any, len(c.props.Variables)+5)
	for name, value := range c.props.Variables {
		params[name] = value
	}
	maps.Copy(params, map[string]any{
		"units":               agg.AggregatedUnits,
		"full_units":          agg.FullUnits,
		"event_count":         agg.EventCount,
		"free_units_consumed": agg.FreeUnitsConsumed,
	})

	amount, err := c.evaluator.Evaluate(c.props.Expression, params)
	if err != nil {
		return pricingdomain.FeeComputationResult{}, err
	}
	return c.rounding.result(decimal.Max(amount, decimal.Zero), agg.AggregatedUnits, agg.EventCount), nil
}
