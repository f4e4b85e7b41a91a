package domain

import (
	"context"
	"errors"

	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

// Provider aggregates usage for pricing.
type Provider interface {
	Aggregate(ctx context.Context, req Request) (pricingdomain.AggregationResult, error)
}

// Recorder stores usage events.
type Recorder interface {
	Record(ctx context.Context, events ...*UsageEvent) error
}

var (
	ErrInvalidAggregation  = errors.New("invalid_aggregation_type")
	ErrMissingField        = errors.New("missing_aggregation_field")
	ErrInvalidWindow       = errors.New("invalid_aggregation_window")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidMetric       = errors.New("invalid_metric")
	ErrInvalidEventValue   = errors.New("invalid_event_value")
)
