package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, h, min, s int) time.Time {
	return time.Date(y, m, d, h, min, s, 0, time.UTC)
}

func day(y int, m time.Month, d int) time.Time {
	return utc(y, m, d, 0, 0, 0)
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return utc(y, m, d, 23, 59, 59)
}

func mustCalculator(t *testing.T, sub billingperioddomain.SubscriptionBillingContext) billingperioddomain.Calculator {
	t.Helper()
	calc, err := NewCalculator(sub, "UTC")
	require.NoError(t, err)
	return calc
}

func assertBoundary(t *testing.T, got *billingperioddomain.PeriodBoundary, from, to, chargesFrom, chargesTo time.Time) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, from, got.FromDatetime, "from")
	assert.Equal(t, to, got.ToDatetime, "to")
	assert.Equal(t, chargesFrom, got.ChargesFromDatetime, "charges from")
	assert.Equal(t, chargesTo, got.ChargesToDatetime, "charges to")
}

func TestMonthlyAnniversary_Arrears(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 2, 2),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingAnniversary,
	})

	got := calc.Compute(day(2022, 3, 7), false)

	assertBoundary(t, got,
		day(2022, 2, 2), endOfDay(2022, 3, 1),
		day(2022, 2, 2), endOfDay(2022, 3, 1),
	)
	assert.Equal(t, 28, calc.ChargesDurationInDays(day(2022, 3, 7), false))
}

func TestMonthlyAnniversary_ClampsMissingDay(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 1, 31),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingAnniversary,
	})

	// period running over February starts on the 28th
	got := calc.Compute(day(2022, 3, 5), false)
	assertBoundary(t, got,
		day(2022, 1, 31), endOfDay(2022, 2, 27),
		day(2022, 1, 31), endOfDay(2022, 2, 27),
	)

	// and the next one returns to the 31st
	got = calc.Compute(day(2022, 3, 31), false)
	assertBoundary(t, got,
		day(2022, 2, 28), endOfDay(2022, 3, 30),
		day(2022, 2, 28), endOfDay(2022, 3, 30),
	)
}

func TestMonthlyCalendar(t *testing.T) {
	sub := billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 1, 15),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingCalendar,
	}

	t.Run("arrears bills the previous month", func(t *testing.T) {
		got := mustCalculator(t, sub).Compute(day(2022, 3, 1), false)
		assertBoundary(t, got,
			day(2022, 2, 1), endOfDay(2022, 2, 28),
			day(2022, 2, 1), endOfDay(2022, 2, 28),
		)
	})

	t.Run("current usage bills the running month", func(t *testing.T) {
		got := mustCalculator(t, sub).Compute(utc(2022, 3, 12, 8, 0, 0), true)
		assertBoundary(t, got,
			day(2022, 3, 1), endOfDay(2022, 3, 31),
			day(2022, 3, 1), endOfDay(2022, 3, 31),
		)
	})

	t.Run("pay in advance shifts the plan period forward", func(t *testing.T) {
		advance := sub
		advance.PayInAdvance = true
		got := mustCalculator(t, advance).Compute(day(2022, 3, 1), false)
		assertBoundary(t, got,
			day(2022, 3, 1), endOfDay(2022, 3, 31),
			day(2022, 2, 1), endOfDay(2022, 2, 28),
		)
	})
}

func TestCompute_ClampsToSubscriptionStart(t *testing.T) {
	started := utc(2022, 2, 10, 9, 30, 0)
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 2, 1),
		StartedAt:      started,
		Interval:       billingperioddomain.IntervalMonthly,
	})

	got := calc.Compute(day(2022, 3, 1), false)
	assertBoundary(t, got,
		started, endOfDay(2022, 2, 28),
		started, endOfDay(2022, 2, 28),
	)
}

func TestCompute_NoBoundary(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			Interval: billingperioddomain.IntervalMonthly,
		})
		assert.Nil(t, calc.Compute(day(2022, 3, 1), false))
	})

	t.Run("period ends before start", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2022, 5, 1),
			Interval:       billingperioddomain.IntervalMonthly,
		})
		assert.Nil(t, calc.Compute(day(2022, 3, 1), false))
	})
}

func TestCompute_Termination(t *testing.T) {
	terminatedAt := utc(2022, 3, 15, 10, 0, 0)

	for _, payInAdvance := range []bool{false, true} {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2022, 1, 1),
			Interval:       billingperioddomain.IntervalMonthly,
			PayInAdvance:   payInAdvance,
			TerminatedAt:   &terminatedAt,
		})

		got := calc.Compute(terminatedAt, false)
		require.NotNil(t, got)
		assert.Equal(t, day(2022, 3, 1), got.FromDatetime)
		assert.Equal(t, terminatedAt, got.ToDatetime)
		assert.Equal(t, terminatedAt, got.ChargesToDatetime)
		assert.False(t, got.ChargesFromDatetime.After(got.ChargesToDatetime))
	}
}

func TestCompute_TerminationAfterReferenceIsIgnored(t *testing.T) {
	terminatedAt := utc(2022, 3, 15, 10, 0, 0)
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 1, 1),
		Interval:       billingperioddomain.IntervalMonthly,
		TerminatedAt:   &terminatedAt,
	})

	got := calc.Compute(day(2022, 3, 1), false)
	assertBoundary(t, got,
		day(2022, 2, 1), endOfDay(2022, 2, 28),
		day(2022, 2, 1), endOfDay(2022, 2, 28),
	)
}

func TestCompute_CustomerTimezone(t *testing.T) {
	t.Run("ahead of UTC", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2021, 1, 1),
			Interval:       billingperioddomain.IntervalMonthly,
			Timezone:       "Asia/Tokyo",
		})

		got := calc.Compute(day(2022, 3, 1), false)
		assertBoundary(t, got,
			utc(2022, 1, 31, 15, 0, 0), utc(2022, 2, 28, 14, 59, 59),
			utc(2022, 1, 31, 15, 0, 0), utc(2022, 2, 28, 14, 59, 59),
		)
		assert.Equal(t, "Asia/Tokyo", got.Timezone)
	})

	t.Run("behind UTC", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2021, 1, 1),
			Interval:       billingperioddomain.IntervalMonthly,
			Timezone:       "America/New_York",
		})

		// still February 28th in New York
		got := calc.Compute(utc(2022, 3, 1, 3, 0, 0), false)
		assertBoundary(t, got,
			utc(2022, 1, 1, 5, 0, 0), utc(2022, 2, 1, 4, 59, 59),
			utc(2022, 1, 1, 5, 0, 0), utc(2022, 2, 1, 4, 59, 59),
		)
	})
}

func TestCompute_CarryForwardAcrossTimezoneChange(t *testing.T) {
	sub := billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 1, 1),
		Interval:       billingperioddomain.IntervalMonthly,
		Timezone:       "Asia/Tokyo",
		Carry: &billingperioddomain.ChargesCarryForward{
			ChargesToDatetime: endOfDay(2022, 1, 31),
			Timezone:          "UTC",
		},
	}

	got := mustCalculator(t, sub).Compute(day(2022, 3, 1), false)
	require.NotNil(t, got)
	assert.Equal(t, utc(2022, 1, 31, 15, 0, 0), got.FromDatetime)
	assert.Equal(t, day(2022, 2, 1), got.ChargesFromDatetime)
	assert.Equal(t, utc(2022, 2, 28, 14, 59, 59), got.ChargesToDatetime)

	sub.Carry.Timezone = "Asia/Tokyo"
	got = mustCalculator(t, sub).Compute(day(2022, 3, 1), false)
	require.NotNil(t, got)
	assert.Equal(t, utc(2022, 1, 31, 15, 0, 0), got.ChargesFromDatetime)
}

func TestQuarterlyAnniversary_WrapsIntoPreviousYear(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 11, 15),
		Interval:       billingperioddomain.IntervalQuarterly,
		Timing:         billingperioddomain.TimingAnniversary,
	})

	got := calc.Compute(day(2022, 1, 20), true)
	assertBoundary(t, got,
		day(2021, 11, 15), endOfDay(2022, 2, 14),
		day(2021, 11, 15), endOfDay(2022, 2, 14),
	)
}

func TestQuarterlyCalendar_SingleDayPrice(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 6, 1),
		Interval:       billingperioddomain.IntervalQuarterly,
		PlanAmount:     decimal.NewFromInt(9000),
	})

	// Q1 2022 has 90 days
	price := calc.SingleDayPrice(day(2022, 4, 1), false)
	assert.True(t, price.Equal(decimal.NewFromInt(100)), price.String())
}

func TestYearlyCalendar_LeapYearSingleDayPrice(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2019, 2, 28),
		Interval:       billingperioddomain.IntervalYearly,
		Timing:         billingperioddomain.TimingCalendar,
		PlanAmount:     decimal.NewFromInt(36600),
	})

	price := calc.SingleDayPrice(day(2021, 1, 1), false)
	assert.True(t, price.Equal(decimal.NewFromInt(100)), price.String())
}

func TestYearly_ChargesBilledMonthly(t *testing.T) {
	monthly := true
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt:     day(2021, 1, 1),
		Interval:           billingperioddomain.IntervalYearly,
		BillChargesMonthly: &monthly,
	})

	got := calc.Compute(day(2022, 3, 1), false)
	assertBoundary(t, got,
		day(2021, 1, 1), endOfDay(2021, 12, 31),
		day(2022, 2, 1), endOfDay(2022, 2, 28),
	)
	assert.Equal(t, 28, calc.ChargesDurationInDays(day(2022, 3, 1), false))
}

func TestWeekly(t *testing.T) {
	// 2022-03-09 is a Wednesday
	reference := day(2022, 3, 9)

	t.Run("calendar weeks start on Monday", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2022, 1, 1),
			Interval:       billingperioddomain.IntervalWeekly,
		})
		got := calc.Compute(reference, false)
		assertBoundary(t, got,
			day(2022, 2, 28), endOfDay(2022, 3, 6),
			day(2022, 2, 28), endOfDay(2022, 3, 6),
		)
		assert.Equal(t, 7, calc.ChargesDurationInDays(reference, false))
	})

	t.Run("anniversary weeks start on the subscription weekday", func(t *testing.T) {
		calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
			SubscriptionAt: day(2022, 1, 6), // Thursday
			Interval:       billingperioddomain.IntervalWeekly,
			Timing:         billingperioddomain.TimingAnniversary,
		})
		got := calc.Compute(reference, false)
		assertBoundary(t, got,
			day(2022, 2, 24), endOfDay(2022, 3, 2),
			day(2022, 2, 24), endOfDay(2022, 3, 2),
		)
	})
}

func TestDaily(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 1, 1),
		Interval:       billingperioddomain.IntervalDaily,
		PlanAmount:     decimal.NewFromInt(500),
	})

	got := calc.Compute(utc(2022, 3, 1, 12, 0, 0), false)
	assertBoundary(t, got,
		day(2022, 2, 28), endOfDay(2022, 2, 28),
		day(2022, 2, 28), endOfDay(2022, 2, 28),
	)
	assert.True(t, calc.SingleDayPrice(utc(2022, 3, 1, 12, 0, 0), false).Equal(decimal.NewFromInt(500)))
}

func TestSchedulerHelpers(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 1, 1),
		Interval:       billingperioddomain.IntervalMonthly,
	})
	reference := day(2022, 2, 10)

	assert.Equal(t, endOfDay(2022, 2, 28), calc.NextEndOfPeriod(reference))
	assert.Equal(t, day(2022, 2, 1), calc.PreviousBeginningOfPeriod(reference, true))
	assert.Equal(t, day(2022, 1, 1), calc.PreviousBeginningOfPeriod(reference, false))

	anniversary := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2021, 1, 20),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingAnniversary,
	})
	assert.Equal(t, endOfDay(2022, 2, 19), anniversary.NextEndOfPeriod(reference))
	assert.Equal(t, day(2021, 12, 20), anniversary.PreviousBeginningOfPeriod(reference, false))
}

func TestNewCalculator_Errors(t *testing.T) {
	_, err := NewCalculator(billingperioddomain.SubscriptionBillingContext{Interval: "fortnightly"}, "UTC")
	assert.ErrorIs(t, err, billingperioddomain.ErrUnsupportedInterval)

	_, err = NewCalculator(billingperioddomain.SubscriptionBillingContext{
		Interval: billingperioddomain.IntervalMonthly,
		Timing:   "lunar",
	}, "UTC")
	assert.ErrorIs(t, err, billingperioddomain.ErrUnsupportedTiming)

	_, err = NewCalculator(billingperioddomain.SubscriptionBillingContext{
		Interval: billingperioddomain.IntervalMonthly,
		Timezone: "Mars/Olympus",
	}, "UTC")
	assert.ErrorIs(t, err, billingperioddomain.ErrInvalidTimezone)
}

func TestCompute_Idempotent(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2020, 2, 29),
		Interval:       billingperioddomain.IntervalYearly,
		Timing:         billingperioddomain.TimingAnniversary,
	})

	first := calc.Compute(day(2023, 3, 10), false)
	second := calc.Compute(day(2023, 3, 10), false)
	assert.Equal(t, first, second)
	assertBoundary(t, first,
		day(2022, 2, 28), endOfDay(2023, 2, 27),
		day(2022, 2, 28), endOfDay(2023, 2, 27),
	)
}

func TestAnniversary_ClampedReferenceDays(t *testing.T) {
	monthly := billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 1, 31),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingAnniversary,
	}
	yearly := billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2020, 2, 29),
		Interval:       billingperioddomain.IntervalYearly,
		Timing:         billingperioddomain.TimingAnniversary,
	}

	tests := []struct {
		name      string
		sub       billingperioddomain.SubscriptionBillingContext
		reference time.Time
		from, to  time.Time
		previous  time.Time
	}{
		{
			name:      "first period billed on february 28",
			sub:       monthly,
			reference: day(2022, 2, 28),
			from:      day(2022, 1, 31),
			to:        endOfDay(2022, 2, 27),
			previous:  day(2022, 1, 31),
		},
		{
			name:      "april 30 bills the period starting march 31",
			sub:       monthly,
			reference: day(2022, 4, 30),
			from:      day(2022, 3, 31),
			to:        endOfDay(2022, 4, 29),
			previous:  day(2022, 3, 31),
		},
		{
			name:      "june 30 bills the period starting may 31",
			sub:       monthly,
			reference: day(2022, 6, 30),
			from:      day(2022, 5, 31),
			to:        endOfDay(2022, 6, 29),
			previous:  day(2022, 5, 31),
		},
		{
			name:      "leap day anchor billed on february 28",
			sub:       yearly,
			reference: day(2025, 2, 28),
			from:      day(2024, 2, 29),
			to:        endOfDay(2025, 2, 27),
			previous:  day(2024, 2, 29),
		},
		{
			name:      "leap day anchor back on a leap year",
			sub:       yearly,
			reference: day(2024, 2, 29),
			from:      day(2023, 2, 28),
			to:        endOfDay(2024, 2, 28),
			previous:  day(2023, 2, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := mustCalculator(t, tt.sub)

			got := calc.Compute(tt.reference, false)
			assertBoundary(t, got, tt.from, tt.to, tt.from, tt.to)
			assert.Equal(t, tt.previous, calc.PreviousBeginningOfPeriod(tt.reference, false))
		})
	}
}

func TestAnniversary_ClampedPayInAdvanceCharges(t *testing.T) {
	calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
		SubscriptionAt: day(2022, 1, 31),
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingAnniversary,
		PayInAdvance:   true,
	})

	got := calc.Compute(day(2022, 4, 30), false)
	assertBoundary(t, got,
		day(2022, 4, 30), endOfDay(2022, 5, 30),
		day(2022, 3, 31), endOfDay(2022, 4, 29),
	)
}

func TestCompute_FirstPayInAdvanceInvoice(t *testing.T) {
	tests := []struct {
		name   string
		timing billingperioddomain.BillingTiming
		start  time.Time
		to     time.Time
	}{
		{
			name:   "calendar",
			timing: billingperioddomain.TimingCalendar,
			start:  day(2022, 3, 1),
			to:     endOfDay(2022, 3, 31),
		},
		{
			name:   "anniversary",
			timing: billingperioddomain.TimingAnniversary,
			start:  day(2022, 3, 15),
			to:     endOfDay(2022, 4, 14),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := mustCalculator(t, billingperioddomain.SubscriptionBillingContext{
				SubscriptionAt: tt.start,
				Interval:       billingperioddomain.IntervalMonthly,
				Timing:         tt.timing,
				PayInAdvance:   true,
			})

			got := calc.Compute(tt.start, false)
			require.NotNil(t, got)
			assert.Equal(t, tt.start, got.FromDatetime)
			assert.Equal(t, tt.to, got.ToDatetime)
			assert.Equal(t, tt.start, got.ChargesFromDatetime)
			assert.Equal(t, tt.start, got.ChargesToDatetime)
			assert.False(t, got.ChargesFromDatetime.Before(tt.start))
		})
	}
}
