package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
)

// periodRule knows the shape of one billing interval. Dates are civil dates at 00:00 UTC.
type periodRule interface {
	// periodStart returns the first day of the period containing date.
	periodStart(date time.Time) time.Time
	// nextStart returns the first day of the period following the one starting at start.
	nextStart(start time.Time) time.Time
}

// previousPeriodStart returns the first day of the period right before the one containing date.
func previousPeriodStart(rule periodRule, date time.Time) time.Time {
	return rule.periodStart(rule.periodStart(date).AddDate(0, 0, -1))
}

// calculator holds the rules shared by every interval. Interval types only supply a periodRule.
type calculator struct {
	sub      billingperioddomain.SubscriptionBillingContext
	loc      *time.Location
	timezone string
	anchor   time.Time

	rule        periodRule
	chargesRule periodRule
}

// NewCalculator builds the interval-specific calculator for sub.
// defaultTimezone applies when the subscription carries none.
func NewCalculator(sub billingperioddomain.SubscriptionBillingContext, defaultTimezone string) (billingperioddomain.Calculator, error) {
	timezone := strings.TrimSpace(sub.Timezone)
	if timezone == "" {
		timezone = strings.TrimSpace(defaultTimezone)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", billingperioddomain.ErrInvalidTimezone, timezone)
	}

	timing := sub.Timing
	if timing == "" {
		timing = billingperioddomain.TimingCalendar
	}
	if timing != billingperioddomain.TimingCalendar && timing != billingperioddomain.TimingAnniversary {
		return nil, fmt.Errorf("%w: %s", billingperioddomain.ErrUnsupportedTiming, sub.Timing)
	}
	sub.Timing = timing

	base := &calculator{
		sub:      sub,
		loc:      loc,
		timezone: timezone,
	}
	if !sub.SubscriptionAt.IsZero() {
		base.anchor = base.civil(sub.SubscriptionAt)
	} else if !sub.StartedAt.IsZero() {
		base.anchor = base.civil(sub.StartedAt)
	}

	switch sub.Interval {
	case billingperioddomain.IntervalDaily:
		return newDailyCalculator(base), nil
	case billingperioddomain.IntervalWeekly:
		return newWeeklyCalculator(base), nil
	case billingperioddomain.IntervalMonthly:
		return newMonthlyCalculator(base), nil
	case billingperioddomain.IntervalQuarterly:
		return newQuarterlyCalculator(base), nil
	case billingperioddomain.IntervalYearly:
		return newYearlyCalculator(base), nil
	default:
		return nil, fmt.Errorf("%w: %s", billingperioddomain.ErrUnsupportedInterval, sub.Interval)
	}
}

func (c *calculator) anniversary() bool {
	return c.sub.Timing == billingperioddomain.TimingAnniversary
}

// calendarOf wraps a civil date for calendar boundary lookups. Weeks start on Monday.
func calendarOf(date time.Time) *now.Now {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: time.UTC}
	return cfg.With(date)
}

// civil converts an instant to its calendar date in the customer's timezone.
func (c *calculator) civil(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// instant converts a civil date back to UTC, at 00:00:00 or 23:59:59 local time.
func (c *calculator) instant(date time.Time, endOfDay bool) time.Time {
	y, m, d := date.Date()
	if endOfDay {
		return time.Date(y, m, d, 23, 59, 59, 0, c.loc).UTC()
	}
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc).UTC()
}

// billsCurrentPeriod is true when the reference period itself is billed rather than the previous one.
func (c *calculator) billsCurrentPeriod(reference time.Time, currentUsage bool) bool {
	return currentUsage || c.sub.TerminatedBy(reference)
}

func (c *calculator) baseDate(reference time.Time, currentUsage bool) time.Time {
	billing := c.civil(reference)
	if c.billsCurrentPeriod(reference, currentUsage) {
		return billing
	}
	return previousPeriodStart(c.rule, billing)
}

func (c *calculator) planPeriodStart(reference time.Time, currentUsage bool) time.Time {
	if c.sub.PayInAdvance || c.billsCurrentPeriod(reference, currentUsage) {
		return c.rule.periodStart(c.civil(reference))
	}
	return c.rule.periodStart(c.baseDate(reference, currentUsage))
}

func (c *calculator) chargesPeriodStart(reference time.Time, currentUsage bool) time.Time {
	if !c.sub.ChargesBilledMonthly() {
		if !c.sub.PayInAdvance {
			return c.planPeriodStart(reference, currentUsage)
		}
		// usage of a pay-in-advance plan is billed for the period just ended
		return c.rule.periodStart(c.baseDate(reference, currentUsage))
	}

	billing := c.civil(reference)
	if c.billsCurrentPeriod(reference, currentUsage) {
		return c.chargesRule.periodStart(billing)
	}
	return previousPeriodStart(c.chargesRule, billing)
}

func (c *calculator) chargesPeriodEnd(start time.Time) time.Time {
	if c.sub.ChargesBilledMonthly() {
		return c.chargesRule.nextStart(start).AddDate(0, 0, -1)
	}
	return c.rule.nextStart(start).AddDate(0, 0, -1)
}

func (c *calculator) Compute(reference time.Time, currentUsage bool) *billingperioddomain.PeriodBoundary {
	startAt := c.sub.StartAt()
	if startAt.IsZero() {
		return nil
	}

	fromDate := c.planPeriodStart(reference, currentUsage)
	toDate := c.rule.nextStart(fromDate).AddDate(0, 0, -1)
	chargesFromDate := c.chargesPeriodStart(reference, currentUsage)
	chargesToDate := c.chargesPeriodEnd(chargesFromDate)

	boundary := billingperioddomain.PeriodBoundary{
		FromDatetime:        c.instant(fromDate, false),
		ToDatetime:          c.instant(toDate, true),
		ChargesFromDatetime: c.instant(chargesFromDate, false),
		ChargesToDatetime:   c.instant(chargesToDate, true),
		Timezone:            c.timezone,
	}

	if carry := c.sub.Carry; carry != nil && !carry.ChargesToDatetime.IsZero() && carry.Timezone != c.timezone {
		boundary.ChargesFromDatetime = carry.ChargesToDatetime.UTC().Add(time.Second)
	}

	if boundary.ToDatetime.Before(startAt) {
		return nil
	}
	if boundary.FromDatetime.Before(startAt) {
		boundary.FromDatetime = startAt
	}
	if boundary.ChargesFromDatetime.Before(startAt) {
		boundary.ChargesFromDatetime = startAt
	}
	// no usage can predate the subscription; the charges window collapses onto its start
	if boundary.ChargesToDatetime.Before(startAt) {
		boundary.ChargesToDatetime = startAt
	}

	if c.sub.TerminatedBy(reference) {
		terminatedAt := c.sub.TerminatedAt.UTC()
		if !terminatedAt.After(boundary.ToDatetime) {
			boundary.ToDatetime = terminatedAt
		}
		if !terminatedAt.After(boundary.ChargesToDatetime) {
			boundary.ChargesToDatetime = terminatedAt
		}
	}

	if boundary.ToDatetime.Before(boundary.FromDatetime) {
		boundary.FromDatetime = boundary.ToDatetime
	}
	if boundary.ChargesToDatetime.Before(boundary.ChargesFromDatetime) {
		boundary.ChargesFromDatetime = boundary.ChargesToDatetime
	}

	return &boundary
}

func (c *calculator) SingleDayPrice(reference time.Time, currentUsage bool) decimal.Decimal {
	start := c.planPeriodStart(reference, currentUsage)
	days := daysBetween(start, c.rule.nextStart(start))
	if days <= 0 {
		return decimal.Zero
	}
	return c.sub.PlanAmount.Div(decimal.NewFromInt(int64(days)))
}

func (c *calculator) ChargesDurationInDays(reference time.Time, currentUsage bool) int {
	start := c.chargesPeriodStart(reference, currentUsage)
	return daysBetween(start, c.chargesPeriodEnd(start)) + 1
}

func (c *calculator) NextEndOfPeriod(reference time.Time) time.Time {
	start := c.rule.periodStart(c.civil(reference))
	return c.instant(c.rule.nextStart(start).AddDate(0, 0, -1), true)
}

func (c *calculator) PreviousBeginningOfPeriod(reference time.Time, currentPeriod bool) time.Time {
	date := c.civil(reference)
	if !currentPeriod {
		return c.instant(previousPeriodStart(c.rule, date), false)
	}
	return c.instant(c.rule.periodStart(date), false)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func shiftMonth(year int, month time.Month, months int) (int, time.Month) {
	total := year*12 + int(month) - 1 + months
	return total / 12, time.Month(total%12 + 1)
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// anniversaryMonthStart finds the latest anchor occurrence on or before date, for periods of months length.
// Anchor days missing from a month fall back to that month's last day.
func anniversaryMonthStart(date, anchor time.Time, months int) time.Time {
	offset := (int(date.Month()) - int(anchor.Month())) % months
	if offset < 0 {
		offset += months
	}
	y, m := shiftMonth(date.Year(), date.Month(), -offset)
	candidate := clampedDate(y, m, anchor.Day())
	if candidate.After(date) {
		y, m = shiftMonth(y, m, -months)
		candidate = clampedDate(y, m, anchor.Day())
	}
	return candidate
}

func anniversaryMonthNext(start, anchor time.Time, months int) time.Time {
	y, m := shiftMonth(start.Year(), start.Month(), months)
	return clampedDate(y, m, anchor.Day())
}
