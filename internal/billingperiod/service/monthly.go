package service

import "time"

// calendarMonthsRule covers month, quarter and year periods aligned to calendar starts.
type calendarMonthsRule struct {
	months int
}

func (r calendarMonthsRule) periodStart(date time.Time) time.Time {
	cal := calendarOf(date)
	switch r.months {
	case 12:
		return cal.BeginningOfYear()
	case 3:
		return cal.BeginningOfQuarter()
	default:
		return cal.BeginningOfMonth()
	}
}

func (r calendarMonthsRule) nextStart(start time.Time) time.Time {
	return start.AddDate(0, r.months, 0)
}

// anniversaryMonthsRule anchors periods of months length to the subscription's month and day.
// Periods whose anchor day is missing start on the month's last day.
type anniversaryMonthsRule struct {
	months int
	anchor time.Time
}

func (r anniversaryMonthsRule) periodStart(date time.Time) time.Time {
	return anniversaryMonthStart(date, r.anchor, r.months)
}

func (r anniversaryMonthsRule) nextStart(start time.Time) time.Time {
	return anniversaryMonthNext(start, r.anchor, r.months)
}

func monthsRule(base *calculator, months int) periodRule {
	if base.anniversary() {
		return anniversaryMonthsRule{months: months, anchor: base.anchor}
	}
	return calendarMonthsRule{months: months}
}

func newMonthlyCalculator(base *calculator) *calculator {
	base.rule = monthsRule(base, 1)
	base.chargesRule = base.rule
	return base
}
