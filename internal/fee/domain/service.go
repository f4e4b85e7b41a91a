// Package domain describes fee requests that run the full boundary, aggregation and pricing flow.
package domain

import (
	"context"
	"errors"
	"time"

	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// PeriodFeeRequest prices one charge of one subscription for the period around Reference.
type PeriodFeeRequest struct {
	Subscription billingperioddomain.SubscriptionBillingContext
	Charge       pricingdomain.ChargeConfiguration
	Metric       aggregationdomain.BillableMetric
	Filters      map[string]string
	// Reference defaults to the clock's now.
	Reference    time.Time
	CurrentUsage bool
}

// InstantFeeRequest prices a recorded event of a pay-in-advance charge.
type InstantFeeRequest struct {
	Subscription  billingperioddomain.SubscriptionBillingContext
	Charge        pricingdomain.ChargeConfiguration
	Metric        aggregationdomain.BillableMetric
	Filters       map[string]string
	TransactionID string
	// Timestamp of the event; defaults to the clock's now.
	Timestamp time.Time
}

// Fee is a priced charge and the window it was priced over.
// Boundary is nil when the subscription has no billable period yet.
type Fee struct {
	Boundary              *billingperioddomain.PeriodBoundary `json:"boundary"`
	ChargesDurationInDays int                                 `json:"charges_duration_in_days"`
	Result                pricingdomain.FeeComputationResult  `json:"result"`
}

type Service interface {
	ComputePeriodFee(ctx context.Context, req PeriodFeeRequest) (Fee, error)
	ComputeInstantFee(ctx context.Context, req InstantFeeRequest) (Fee, error)
}

var (
	ErrMissingTransaction = errors.New("missing_transaction_id")
)
