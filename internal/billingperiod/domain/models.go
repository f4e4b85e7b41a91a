package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingInterval is the length of a plan period.
type BillingInterval string

const (
	IntervalDaily     BillingInterval = "daily"
	IntervalWeekly    BillingInterval = "weekly"
	IntervalMonthly   BillingInterval = "monthly"
	IntervalQuarterly BillingInterval = "quarterly"
	IntervalYearly    BillingInterval = "yearly"
)

// BillingTiming selects how period boundaries are aligned.
type BillingTiming string

const (
	// TimingCalendar aligns periods to day, week, month, quarter or year starts.
	TimingCalendar BillingTiming = "calendar"
	// TimingAnniversary aligns periods to the subscription's start day or weekday.
	TimingAnniversary BillingTiming = "anniversary"
)

// ChargesCarryForward records where the previous invoice stopped billing usage.
type ChargesCarryForward struct {
	ChargesToDatetime time.Time
	// Timezone the previous boundary was computed in. Empty means unknown.
	Timezone string
}

// SubscriptionBillingContext is the read-only view of a subscription needed to place fees in time.
type SubscriptionBillingContext struct {
	SubscriptionID string
	// SubscriptionAt anchors anniversary periods.
	SubscriptionAt time.Time
	// StartedAt is when billing actually began. Falls back to SubscriptionAt when zero.
	StartedAt    time.Time
	Interval     BillingInterval
	Timing       BillingTiming
	PayInAdvance bool
	TerminatedAt *time.Time
	Timezone     string
	// BillChargesMonthly splits quarterly and yearly plans into monthly usage periods.
	BillChargesMonthly *bool
	PlanAmount         decimal.Decimal
	Carry              *ChargesCarryForward
}

// StartAt returns the instant billing started, or zero when the subscription never started.
func (c SubscriptionBillingContext) StartAt() time.Time {
	if !c.StartedAt.IsZero() {
		return c.StartedAt.UTC()
	}
	return c.SubscriptionAt.UTC()
}

// TerminatedBy reports whether the subscription was terminated at or before reference.
func (c SubscriptionBillingContext) TerminatedBy(reference time.Time) bool {
	return c.TerminatedAt != nil && !reference.Before(*c.TerminatedAt)
}

func (c SubscriptionBillingContext) ChargesBilledMonthly() bool {
	if c.BillChargesMonthly == nil || !*c.BillChargesMonthly {
		return false
	}
	return c.Interval == IntervalQuarterly || c.Interval == IntervalYearly
}

// PeriodBoundary is the billing window for plan fees and for usage charges, in UTC.
type PeriodBoundary struct {
	FromDatetime        time.Time `json:"from_datetime"`
	ToDatetime          time.Time `json:"to_datetime"`
	ChargesFromDatetime time.Time `json:"charges_from_datetime"`
	ChargesToDatetime   time.Time `json:"charges_to_datetime"`
	Timezone            string    `json:"timezone"`
}
