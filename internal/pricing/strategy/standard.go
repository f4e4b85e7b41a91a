package strategy

import pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"

// Standard charges a flat amount per unit.
type Standard struct {
	props    pricingdomain.StandardProperties
	rounding Rounding
}

func NewStandard(props pricingdomain.StandardProperties, rounding Rounding) *Standard {
	return &Standard{props: props, rounding: rounding}
}

func (s *Standard) Model() pricingdomain.ChargeModel { return pricingdomain.ModelStandard }

func (s *Standard) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return s.rounding.zero(agg), nil
	}
	return s.rounding.result(s.props.Amount.Mul(agg.AggregatedUnits), agg.AggregatedUnits, agg.EventCount), nil
}
