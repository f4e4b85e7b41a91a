package service

import "time"

// dailyRule is shared by calendar and anniversary timing: a day is a day.
type dailyRule struct{}

func (dailyRule) periodStart(date time.Time) time.Time { return date }

func (dailyRule) nextStart(start time.Time) time.Time { return start.AddDate(0, 0, 1) }

func newDailyCalculator(base *calculator) *calculator {
	base.rule = dailyRule{}
	base.chargesRule = base.rule
	return base
}
