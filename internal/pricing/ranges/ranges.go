// Package ranges validates tier configurations of graduated, volume and graduated percentage charges.
package ranges

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
)

type bounds struct {
	from decimal.Decimal
	to   *decimal.Decimal
}

// Validate checks inputs and returns the typed ranges.
// Checks run in a fixed order: missing, structure, amounts, currency.
func Validate(inputs []pricingdomain.RangeInput) ([]pricingdomain.TierRange, error) {
	if len(inputs) == 0 {
		return nil, pricingdomain.ErrMissingRange
	}
	if err := validateStructure(lo.Map(inputs, func(in pricingdomain.RangeInput, _ int) bounds {
		return bounds{from: in.FromValue, to: in.ToValue}
	})); err != nil {
		return nil, err
	}

	out := make([]pricingdomain.TierRange, 0, len(inputs))
	for i, in := range inputs {
		perUnit, err := parseAmount(in.PerUnitAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: range %d per_unit_amount %s", pricingdomain.ErrInvalidAmount, i, err)
		}
		flat, err := parseAmount(in.FlatAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: range %d flat_amount %s", pricingdomain.ErrInvalidAmount, i, err)
		}
		out = append(out, pricingdomain.TierRange{
			FromValue:     in.FromValue,
			ToValue:       in.ToValue,
			PerUnitAmount: perUnit,
			FlatAmount:    flat,
			Currency:      strings.ToUpper(strings.TrimSpace(in.Currency)),
		})
	}

	if err := validateCurrency(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateTiers re-checks ranges that were typed elsewhere.
func ValidateTiers(tiers []pricingdomain.TierRange) error {
	if len(tiers) == 0 {
		return pricingdomain.ErrMissingRange
	}
	if err := validateStructure(lo.Map(tiers, func(t pricingdomain.TierRange, _ int) bounds {
		return bounds{from: t.FromValue, to: t.ToValue}
	})); err != nil {
		return err
	}
	for i, t := range tiers {
		if t.PerUnitAmount.IsNegative() || t.FlatAmount.IsNegative() {
			return fmt.Errorf("%w: range %d has a negative amount", pricingdomain.ErrInvalidAmount, i)
		}
	}
	return validateCurrency(tiers)
}

// ValidatePercentage checks graduated percentage ranges. They carry no currency.
func ValidatePercentage(inputs []pricingdomain.PercentageRangeInput) ([]pricingdomain.PercentageRange, error) {
	if len(inputs) == 0 {
		return nil, pricingdomain.ErrMissingRange
	}
	if err := validateStructure(lo.Map(inputs, func(in pricingdomain.PercentageRangeInput, _ int) bounds {
		return bounds{from: in.FromValue, to: in.ToValue}
	})); err != nil {
		return nil, err
	}

	out := make([]pricingdomain.PercentageRange, 0, len(inputs))
	for i, in := range inputs {
		rate, err := parseAmount(in.Rate)
		if err != nil {
			return nil, fmt.Errorf("%w: range %d rate %s", pricingdomain.ErrInvalidAmount, i, err)
		}
		flat, err := parseAmount(in.FlatAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: range %d flat_amount %s", pricingdomain.ErrInvalidAmount, i, err)
		}
		out = append(out, pricingdomain.PercentageRange{
			FromValue:  in.FromValue,
			ToValue:    in.ToValue,
			Rate:       rate,
			FlatAmount: flat,
		})
	}
	return out, nil
}

// ValidatePercentageTiers re-checks typed graduated percentage ranges.
func ValidatePercentageTiers(tiers []pricingdomain.PercentageRange) error {
	if len(tiers) == 0 {
		return pricingdomain.ErrMissingRange
	}
	if err := validateStructure(lo.Map(tiers, func(t pricingdomain.PercentageRange, _ int) bounds {
		return bounds{from: t.FromValue, to: t.ToValue}
	})); err != nil {
		return err
	}
	for i, t := range tiers {
		if t.Rate.IsNegative() || t.FlatAmount.IsNegative() {
			return fmt.Errorf("%w: range %d has a negative amount", pricingdomain.ErrInvalidAmount, i)
		}
	}
	return nil
}

// validateStructure enforces: first range starts at 0, only the last range is unbounded,
// and every range starts exactly one unit after the previous one ends.
func validateStructure(rs []bounds) error {
	first, last := rs[0], rs[len(rs)-1]
	if !first.from.IsZero() {
		return fmt.Errorf("%w: first range must start at 0", pricingdomain.ErrInvalidRangeStructure)
	}
	if last.to != nil {
		return fmt.Errorf("%w: last range must be unbounded", pricingdomain.ErrInvalidRangeStructure)
	}

	for i, r := range rs {
		if r.from.IsNegative() {
			return fmt.Errorf("%w: range %d starts below 0", pricingdomain.ErrInvalidRangeStructure, i)
		}
		if i == len(rs)-1 {
			break
		}
		if r.to == nil {
			return fmt.Errorf("%w: range %d is unbounded but not last", pricingdomain.ErrInvalidRangeStructure, i)
		}
		if r.to.LessThan(r.from) {
			return fmt.Errorf("%w: range %d ends before it starts", pricingdomain.ErrInvalidRangeStructure, i)
		}
		if next := rs[i+1]; !next.from.Equal(r.to.Add(decimal.NewFromInt(1))) {
			return fmt.Errorf("%w: range %d must start at %s", pricingdomain.ErrInvalidRangeStructure, i+1, r.to.Add(decimal.NewFromInt(1)))
		}
	}
	return nil
}

func validateCurrency(tiers []pricingdomain.TierRange) error {
	currency := strings.ToUpper(strings.TrimSpace(tiers[0].Currency))
	for i, t := range tiers {
		c := strings.ToUpper(strings.TrimSpace(t.Currency))
		if c == "" {
			return fmt.Errorf("%w: range %d has no currency", pricingdomain.ErrInvalidCurrency, i)
		}
		if c != currency {
			return fmt.Errorf("%w: range %d uses %s, expected %s", pricingdomain.ErrInvalidCurrency, i, c, currency)
		}
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("is missing")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not numeric", raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", raw)
	}
	return amount, nil
}
