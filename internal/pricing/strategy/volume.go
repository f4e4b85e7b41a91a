package strategy

import (
	"fmt"

	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Volume prices every unit with the single range holding the total.
type Volume struct {
	tiers    []tier
	rounding Rounding
}

func NewVolume(props pricingdomain.VolumeProperties, rounding Rounding) *Volume {
	return &Volume{tiers: tiersFromRanges(props.Ranges), rounding: rounding}
}

func (v *Volume) Model() pricingdomain.ChargeModel { return pricingdomain.ModelVolume }

func (v *Volume) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return v.rounding.zero(agg), nil
	}

	units := agg.AggregatedUnits
	for i, t := range v.tiers {
		if !t.contains(units, i == 0) {
			continue
		}
		return v.rounding.result(t.flat.Add(t.perUnit.Mul(units)), units, agg.EventCount), nil
	}
	return pricingdomain.FeeComputationResult{}, fmt.Errorf("%w: no range holds %s units", pricingdomain.ErrInvalidRangeStructure, units)
}
