package service

import "time"

type calendarWeekRule struct{}

func (calendarWeekRule) periodStart(date time.Time) time.Time {
	return calendarOf(date).BeginningOfWeek()
}

func (calendarWeekRule) nextStart(start time.Time) time.Time { return start.AddDate(0, 0, 7) }

// anniversaryWeekRule starts each week on the subscription's weekday.
type anniversaryWeekRule struct {
	weekday time.Weekday
}

func (r anniversaryWeekRule) periodStart(date time.Time) time.Time {
	back := (int(date.Weekday()) - int(r.weekday) + 7) % 7
	return date.AddDate(0, 0, -back)
}

func (anniversaryWeekRule) nextStart(start time.Time) time.Time { return start.AddDate(0, 0, 7) }

func newWeeklyCalculator(base *calculator) *calculator {
	if base.anniversary() {
		base.rule = anniversaryWeekRule{weekday: base.anchor.Weekday()}
	} else {
		base.rule = calendarWeekRule{}
	}
	base.chargesRule = base.rule
	return base
}
