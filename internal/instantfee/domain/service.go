package domain

import (
	"context"

	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// IncrementalFeeRequest carries the aggregation around one event of a pay-in-advance charge.
// Before and After must come from one serialized view of the charge's usage.
type IncrementalFeeRequest struct {
	Charge pricingdomain.ChargeConfiguration
	Before pricingdomain.AggregationResult
	After  pricingdomain.AggregationResult
	Event  pricingdomain.EventSnapshot
}

type Service interface {
	// ComputeIncrementalFee prices the difference the event makes to the charge.
	ComputeIncrementalFee(ctx context.Context, req IncrementalFeeRequest) (pricingdomain.FeeComputationResult, error)
}
