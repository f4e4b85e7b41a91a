package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Calculator places fees of one subscription in time. Implementations are pure and safe for concurrent use.
type Calculator interface {
	// Compute returns nil when no boundary can exist yet for the reference instant.
	Compute(reference time.Time, currentUsage bool) *PeriodBoundary
	SingleDayPrice(reference time.Time, currentUsage bool) decimal.Decimal
	ChargesDurationInDays(reference time.Time, currentUsage bool) int
	NextEndOfPeriod(reference time.Time) time.Time
	PreviousBeginningOfPeriod(reference time.Time, currentPeriod bool) time.Time
}

type Service interface {
	CalculatorFor(SubscriptionBillingContext) (Calculator, error)
	Compute(ctx context.Context, sub SubscriptionBillingContext, reference time.Time, currentUsage bool) (*PeriodBoundary, error)
}

var (
	ErrUnsupportedInterval = errors.New("unsupported_billing_interval")
	ErrUnsupportedTiming   = errors.New("unsupported_billing_timing")
	ErrInvalidTimezone     = errors.New("invalid_timezone")
)
