package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Package charges Amount for every started package of PackageSize units, after free units.
type Package struct {
	props    pricingdomain.PackageProperties
	rounding Rounding
}

func NewPackage(props pricingdomain.PackageProperties, rounding Rounding) *Package {
	return &Package{props: props, rounding: rounding}
}

func (p *Package) Model() pricingdomain.ChargeModel { return pricingdomain.ModelPackage }

func (p *Package) Apply(agg pricingdomain.AggregationResult, _ pricingdomain.ApplyOptions) (pricingdomain.FeeComputationResult, error) {
	if hasNoUnits(agg) {
		return p.rounding.zero(agg), nil
	}
	if !p.props.PackageSize.IsPositive() {
		return pricingdomain.FeeComputationResult{}, fmt.Errorf("%w: package_size must be positive", pricingdomain.ErrInvalidProperties)
	}

	billable := decimal.Max(agg.AggregatedUnits.Sub(p.props.FreeUnits), decimal.Zero)
	packages := billable.Div(p.props.PackageSize).Ceil()
	return p.rounding.result(packages.Mul(p.props.Amount), agg.AggregatedUnits, agg.EventCount), nil
}
