package strategy

import (
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// DefaultDynamicExpression reads the amount each event reports for itself.
const DefaultDynamicExpression = "precise_total_amount"

// Dynamic sums an amount evaluated for every event from its own properties.
type Dynamic struct {
	expression string
	evaluator  pricingdomain.Evaluator
	rounding   Rounding
}

func NewDynamic(props pricingdomain.DynamicProperties, evaluator pricingdomain.Evaluator, rounding Rounding) *Dynamic {
	expression := props.AmountExpression
	if expression == "" {
		expression = DefaultDynamicExpression
	}
	return &Dynamic{expression: expression, evaluator: evaluator, rounding: rounding}
}

func (d *Dynamic) Model() pricingdomain.ChargeModel { return pricingdomain.ModelDynamic }

func (d *Dynamic) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return d.rounding.zero(agg), nil
	}
	if d.evaluator == nil {
		return pricingdomain.FeeComputationResult{}, pricingdomain.ErrMissingEvaluator
	}

	total := decimal.Zero
	for _, event := range agg.Events {
		params := make(map[string]any, len(event.Properties)+3)
		maps.Copy(params, event.Properties)
		params["units"] = event.Units
		params["aggregated_units"] = agg.AggregatedUnits
		params["event_count"] = agg.EventCount

		amount, err := d.evaluator.Evaluate(d.expression, params)
		if err != nil {
			return pricingdomain.FeeComputationResult{}, fmt.Errorf("event %s: %w", event.TransactionID, err)
		}
		total = total.Add(amount)
	}

	return d.rounding.result(total, agg.AggregatedUnits, agg.EventCount), nil
}
