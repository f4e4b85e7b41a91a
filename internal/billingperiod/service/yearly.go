package service

func newYearlyCalculator(base *calculator) *calculator {
	base.rule = monthsRule(base, 12)
	base.chargesRule = base.rule
	if base.sub.ChargesBilledMonthly() {
		base.chargesRule = monthsRule(base, 1)
	}
	return base
}
