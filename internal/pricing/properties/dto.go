package properties

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ChargeInput is the wire shape of a charge. Properties stay raw until the model is known.
type ChargeInput struct {
	ID           string          `json:"id"`
	Model        string          `json:"charge_model" validate:"required"`
	Properties   json.RawMessage `json:"properties"`
	PayInAdvance bool            `json:"pay_in_advance"`
	Prorated     bool            `json:"prorated"`
	GroupedBy    []string        `json:"grouped_by" validate:"omitempty,dive,required"`
	Currency     string          `json:"currency" validate:"required,len=3,alpha"`
}

type rangeDTO struct {
	FromValue     decimal.Decimal  `json:"from_value"`
	ToValue       *decimal.Decimal `json:"to_value"`
	PerUnitAmount string           `json:"per_unit_amount"`
	FlatAmount    string           `json:"flat_amount"`
	Currency      string           `json:"currency"`
}

type percentageRangeDTO struct {
	FromValue  decimal.Decimal  `json:"from_value"`
	ToValue    *decimal.Decimal `json:"to_value"`
	Rate       string           `json:"rate"`
	FlatAmount string           `json:"flat_amount"`
}

type standardDTO struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

type graduatedDTO struct {
	GraduatedRanges []rangeDTO `json:"graduated_ranges"`
	FreeUnits       string     `json:"free_units" validate:"omitempty,numeric"`
}

type volumeDTO struct {
	VolumeRanges []rangeDTO `json:"volume_ranges"`
}

type packageDTO struct {
	PackageSize string `json:"package_size" validate:"required,numeric"`
	Amount      string `json:"amount" validate:"required,numeric"`
	FreeUnits   string `json:"free_units" validate:"omitempty,numeric"`
}

type percentageDTO struct {
	Rate                         string  `json:"rate" validate:"required,numeric"`
	FixedAmount                  string  `json:"fixed_amount" validate:"omitempty,numeric"`
	FreeUnitsPerEvents           *int64  `json:"free_units_per_events" validate:"omitempty,min=0"`
	FreeUnitsPerTotalAggregation *string `json:"free_units_per_total_aggregation" validate:"omitempty,numeric"`
	PerTransactionMinAmount      *string `json:"per_transaction_min_amount" validate:"omitempty,numeric"`
	PerTransactionMaxAmount      *string `json:"per_transaction_max_amount" validate:"omitempty,numeric"`
}

type graduatedPercentageDTO struct {
	GraduatedPercentageRanges []percentageRangeDTO `json:"graduated_percentage_ranges"`
}

type dynamicDTO struct {
	AmountExpression string `json:"amount_expression"`
}

type customDTO struct {
	Expression string            `json:"expression" validate:"required"`
	Variables  map[string]string `json:"variables" validate:"omitempty,dive,keys,required,endkeys,numeric"`
}
