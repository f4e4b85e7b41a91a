package service

func newQuarterlyCalculator(base *calculator) *calculator {
	base.rule = monthsRule(base, 3)
	base.chargesRule = base.rule
	if base.sub.ChargesBilledMonthly() {
		base.chargesRule = monthsRule(base, 1)
	}
	return base
}
