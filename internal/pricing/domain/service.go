package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PricingStrategy maps aggregated usage to a fee. Implementations are pure.
type PricingStrategy interface {
	Model() ChargeModel
	Apply(agg AggregationResult, opts ApplyOptions) (FeeComputationResult, error)
}

// Factory selects the strategy for a charge and the shape of its aggregation.
type Factory interface {
	Select(cfg ChargeConfiguration, agg AggregationResult) (PricingStrategy, error)
}

// Evaluator computes dynamic and custom amounts.
type Evaluator interface {
	Evaluate(expression string, params map[string]any) (decimal.Decimal, error)
}

var (
	ErrUnsupportedModel               = errors.New("unsupported_charge_model")
	ErrChargeNotInstantOrPayInAdvance = errors.New("charge_not_instant_or_pay_in_advance")
	ErrInvalidProperties              = errors.New("invalid_properties")
	ErrMissingEvaluator               = errors.New("missing_expression_evaluator")

	ErrMissingRange          = errors.New("missing_ranges")
	ErrInvalidRangeStructure = errors.New("invalid_ranges")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidAmount         = errors.New("invalid_amount")
)

// ValidationError ties a configuration error to the charge model it was found in.
type ValidationError struct {
	Model  ChargeModel
	Err    error
	Detail string
}

func NewValidationError(model ChargeModel, err error, detail string) *ValidationError {
	return &ValidationError{Model: model, Err: err, Detail: detail}
}

// Code renders the user-facing code, e.g. invalid_graduated_ranges.
func (e *ValidationError) Code() string {
	switch {
	case errors.Is(e.Err, ErrMissingRange):
		return fmt.Sprintf("missing_%s_ranges", e.Model)
	case errors.Is(e.Err, ErrInvalidRangeStructure):
		return fmt.Sprintf("invalid_%s_ranges", e.Model)
	case errors.Is(e.Err, ErrInvalidCurrency):
		return fmt.Sprintf("invalid_%s_currency", e.Model)
	case errors.Is(e.Err, ErrInvalidAmount):
		return fmt.Sprintf("invalid_%s_amount", e.Model)
	default:
		return fmt.Sprintf("invalid_%s_properties", e.Model)
	}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Code()
	}
	return e.Code() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
