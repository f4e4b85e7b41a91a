// Package properties turns the JSON properties of a charge into the typed configuration of its model.
// Shapes are validated here once so strategies never re-check them.
package properties

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"github.com/smallbiznis/chargecore/internal/pricing/ranges"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ParseCharge validates a charge input and types its properties.
func ParseCharge(input ChargeInput) (pricingdomain.ChargeConfiguration, error) {
	model := pricingdomain.ChargeModel(strings.ToLower(strings.TrimSpace(input.Model)))
	if !model.Valid() {
		return pricingdomain.ChargeConfiguration{}, fmt.Errorf("%w: %s", pricingdomain.ErrUnsupportedModel, input.Model)
	}
	if err := validate.Struct(input); err != nil {
		return pricingdomain.ChargeConfiguration{}, validationError(model, err)
	}

	currency := strings.ToUpper(input.Currency)
	props, err := Parse(model, currency, input.Properties)
	if err != nil {
		return pricingdomain.ChargeConfiguration{}, err
	}

	return pricingdomain.ChargeConfiguration{
		ChargeID:     input.ID,
		Model:        model,
		Properties:   props,
		PayInAdvance: input.PayInAdvance,
		Prorated:     input.Prorated,
		GroupedBy:    lo.Uniq(lo.Map(input.GroupedBy, func(key string, _ int) string { return strings.TrimSpace(key) })),
		Currency:     currency,
	}, nil
}

// Parse decodes raw into the properties of model. Ranges without a currency take the charge currency.
func Parse(model pricingdomain.ChargeModel, currency string, raw json.RawMessage) (pricingdomain.Properties, error) {
	switch model {
	case pricingdomain.ModelStandard:
		var dto standardDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		amount, err := parseAmount(model, "amount", dto.Amount)
		if err != nil {
			return nil, err
		}
		return pricingdomain.StandardProperties{Amount: amount}, nil

	case pricingdomain.ModelGraduated:
		var dto graduatedDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		tiers, err := parseRanges(model, currency, dto.GraduatedRanges)
		if err != nil {
			return nil, err
		}
		free, err := parseAmount(model, "free_units", dto.FreeUnits)
		if err != nil {
			return nil, err
		}
		return pricingdomain.GraduatedProperties{Ranges: tiers, FreeUnits: free}, nil

	case pricingdomain.ModelVolume:
		var dto volumeDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		tiers, err := parseRanges(model, currency, dto.VolumeRanges)
		if err != nil {
			return nil, err
		}
		return pricingdomain.VolumeProperties{Ranges: tiers}, nil

	case pricingdomain.ModelPackage:
		return parsePackage(raw)

	case pricingdomain.ModelPercentage:
		return parsePercentage(raw)

	case pricingdomain.ModelGraduatedPercentage:
		var dto graduatedPercentageDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		tiers, err := ranges.ValidatePercentage(lo.Map(dto.GraduatedPercentageRanges, func(r percentageRangeDTO, _ int) pricingdomain.PercentageRangeInput {
			return pricingdomain.PercentageRangeInput{FromValue: r.FromValue, ToValue: r.ToValue, Rate: r.Rate, FlatAmount: r.FlatAmount}
		}))
		if err != nil {
			return nil, pricingdomain.NewValidationError(model, err, err.Error())
		}
		return pricingdomain.GraduatedPercentageProperties{Ranges: tiers}, nil

	case pricingdomain.ModelDynamic:
		var dto dynamicDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		return pricingdomain.DynamicProperties{AmountExpression: strings.TrimSpace(dto.AmountExpression)}, nil

	case pricingdomain.ModelCustom:
		var dto customDTO
		if err := decode(model, raw, &dto); err != nil {
			return nil, err
		}
		vars := make(map[string]decimal.Decimal, len(dto.Variables))
		for name, value := range dto.Variables {
			parsed, err := parseAmount(model, "variables."+name, value)
			if err != nil {
				return nil, err
			}
			vars[name] = parsed
		}
		return pricingdomain.CustomProperties{Expression: strings.TrimSpace(dto.Expression), Variables: vars}, nil

	default:
		return nil, fmt.Errorf("%w: %s", pricingdomain.ErrUnsupportedModel, model)
	}
}

func parsePackage(raw json.RawMessage) (pricingdomain.Properties, error) {
	model := pricingdomain.ModelPackage
	var dto packageDTO
	if err := decode(model, raw, &dto); err != nil {
		return nil, err
	}

	size, err := parseAmount(model, "package_size", dto.PackageSize)
	if err != nil {
		return nil, err
	}
	if !size.IsPositive() {
		return nil, pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidProperties, "package_size must be positive")
	}
	amount, err := parseAmount(model, "amount", dto.Amount)
	if err != nil {
		return nil, err
	}
	free, err := parseAmount(model, "free_units", dto.FreeUnits)
	if err != nil {
		return nil, err
	}
	return pricingdomain.PackageProperties{PackageSize: size, Amount: amount, FreeUnits: free}, nil
}

func parsePercentage(raw json.RawMessage) (pricingdomain.Properties, error) {
	model := pricingdomain.ModelPercentage
	var dto percentageDTO
	if err := decode(model, raw, &dto); err != nil {
		return nil, err
	}

	rate, err := parseAmount(model, "rate", dto.Rate)
	if err != nil {
		return nil, err
	}
	fixed, err := parseAmount(model, "fixed_amount", dto.FixedAmount)
	if err != nil {
		return nil, err
	}
	props := pricingdomain.PercentageProperties{
		Rate:               rate,
		FixedAmount:        fixed,
		FreeUnitsPerEvents: dto.FreeUnitsPerEvents,
	}

	optional := []struct {
		field string
		raw   *string
		dest  **decimal.Decimal
	}{
		{"free_units_per_total_aggregation", dto.FreeUnitsPerTotalAggregation, &props.FreeUnitsPerTotalAggregation},
		{"per_transaction_min_amount", dto.PerTransactionMinAmount, &props.PerTransactionMinAmount},
		{"per_transaction_max_amount", dto.PerTransactionMaxAmount, &props.PerTransactionMaxAmount},
	}
	for _, o := range optional {
		if o.raw == nil || strings.TrimSpace(*o.raw) == "" {
			continue
		}
		value, err := parseAmount(model, o.field, *o.raw)
		if err != nil {
			return nil, err
		}
		*o.dest = lo.ToPtr(value)
	}

	if props.PerTransactionMinAmount != nil && props.PerTransactionMaxAmount != nil &&
		props.PerTransactionMinAmount.GreaterThan(*props.PerTransactionMaxAmount) {
		return nil, pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidAmount, "per_transaction_min_amount exceeds per_transaction_max_amount")
	}
	return props, nil
}

func parseRanges(model pricingdomain.ChargeModel, currency string, dtos []rangeDTO) ([]pricingdomain.TierRange, error) {
	inputs := lo.Map(dtos, func(r rangeDTO, _ int) pricingdomain.RangeInput {
		rangeCurrency := r.Currency
		if strings.TrimSpace(rangeCurrency) == "" {
			rangeCurrency = currency
		}
		return pricingdomain.RangeInput{
			FromValue:     r.FromValue,
			ToValue:       r.ToValue,
			PerUnitAmount: r.PerUnitAmount,
			FlatAmount:    r.FlatAmount,
			Currency:      rangeCurrency,
		}
	})

	tiers, err := ranges.Validate(inputs)
	if err != nil {
		return nil, pricingdomain.NewValidationError(model, err, err.Error())
	}
	if currency != "" && !strings.EqualFold(tiers[0].Currency, currency) {
		return nil, pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidCurrency,
			fmt.Sprintf("ranges use %s, charge uses %s", tiers[0].Currency, currency))
	}
	return tiers, nil
}

func decode(model pricingdomain.ChargeModel, raw json.RawMessage, dest any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidProperties, err.Error())
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(model, err)
	}
	return nil
}

// parseAmount reads an optional non-negative decimal. Empty means zero.
func parseAmount(model pricingdomain.ChargeModel, field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidAmount, field+" is not numeric")
	}
	if value.IsNegative() {
		return decimal.Zero, pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidAmount, field+" is negative")
	}
	return value, nil
}

func validationError(model pricingdomain.ChargeModel, err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pricingdomain.NewValidationError(model, pricingdomain.ErrInvalidProperties, err.Error())
	}

	sentinel := pricingdomain.ErrInvalidProperties
	details := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Tag() == "numeric" {
			sentinel = pricingdomain.ErrInvalidAmount
		}
		details = append(details, fe.Field()+" "+validationMessage(fe))
	}
	sort.Strings(details)
	return pricingdomain.NewValidationError(model, sentinel, strings.Join(details, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be numeric"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	}
	return "is invalid"
}
