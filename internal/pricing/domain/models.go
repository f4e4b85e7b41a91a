package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeModel names a usage pricing algorithm.
type ChargeModel string

const (
	ModelStandard            ChargeModel = "standard"
	ModelGraduated           ChargeModel = "graduated"
	ModelVolume              ChargeModel = "volume"
	ModelPackage             ChargeModel = "package"
	ModelPercentage          ChargeModel = "percentage"
	ModelGraduatedPercentage ChargeModel = "graduated_percentage"
	ModelDynamic             ChargeModel = "dynamic"
	ModelCustom              ChargeModel = "custom"
)

// Valid reports whether m is a known model.
func (m ChargeModel) Valid() bool {
	switch m {
	case ModelStandard, ModelGraduated, ModelVolume, ModelPackage,
		ModelPercentage, ModelGraduatedPercentage, ModelDynamic, ModelCustom:
		return true
	}
	return false
}

// Properties is the typed configuration of one charge model.
type Properties interface {
	Model() ChargeModel
}

// ChargeConfiguration is immutable for the duration of a fee computation.
type ChargeConfiguration struct {
	ChargeID     string
	Model        ChargeModel
	Properties   Properties
	PayInAdvance bool
	Prorated     bool
	GroupedBy    []string
	Currency     string
}

// TierRange is one validated range of a graduated or volume charge. A nil ToValue is unbounded.
type TierRange struct {
	FromValue     decimal.Decimal  `json:"from_value"`
	ToValue       *decimal.Decimal `json:"to_value"`
	PerUnitAmount decimal.Decimal  `json:"per_unit_amount"`
	FlatAmount    decimal.Decimal  `json:"flat_amount"`
	Currency      string           `json:"currency"`
}

// RangeInput is an unvalidated range. Amounts stay strings until validated.
type RangeInput struct {
	FromValue     decimal.Decimal
	ToValue       *decimal.Decimal
	PerUnitAmount string
	FlatAmount    string
	Currency      string
}

// PercentageRange is one validated range of a graduated percentage charge. Rate is a percentage.
type PercentageRange struct {
	FromValue  decimal.Decimal  `json:"from_value"`
	ToValue    *decimal.Decimal `json:"to_value"`
	Rate       decimal.Decimal  `json:"rate"`
	FlatAmount decimal.Decimal  `json:"flat_amount"`
}

type PercentageRangeInput struct {
	FromValue  decimal.Decimal
	ToValue    *decimal.Decimal
	Rate       string
	FlatAmount string
}

type StandardProperties struct {
	Amount decimal.Decimal
}

func (StandardProperties) Model() ChargeModel { return ModelStandard }

type GraduatedProperties struct {
	Ranges    []TierRange
	FreeUnits decimal.Decimal
}

func (GraduatedProperties) Model() ChargeModel { return ModelGraduated }

type VolumeProperties struct {
	Ranges []TierRange
}

func (VolumeProperties) Model() ChargeModel { return ModelVolume }

type PackageProperties struct {
	PackageSize decimal.Decimal
	Amount      decimal.Decimal
	FreeUnits   decimal.Decimal
}

func (PackageProperties) Model() ChargeModel { return ModelPackage }

// PercentageProperties prices a share of the aggregated value. Rate is a percentage.
type PercentageProperties struct {
	Rate        decimal.Decimal
	FixedAmount decimal.Decimal
	// FreeUnitsPerEvents makes the first N events free.
	FreeUnitsPerEvents *int64
	// FreeUnitsPerTotalAggregation makes the first amount of value free.
	FreeUnitsPerTotalAggregation *decimal.Decimal
	PerTransactionMinAmount      *decimal.Decimal
	PerTransactionMaxAmount      *decimal.Decimal
}

func (PercentageProperties) Model() ChargeModel { return ModelPercentage }

type GraduatedPercentageProperties struct {
	Ranges []PercentageRange
}

func (GraduatedPercentageProperties) Model() ChargeModel { return ModelGraduatedPercentage }

// DynamicProperties prices every event by evaluating AmountExpression over its properties.
type DynamicProperties struct {
	AmountExpression string
}

func (DynamicProperties) Model() ChargeModel { return ModelDynamic }

// CustomProperties prices the whole aggregation with one expression.
type CustomProperties struct {
	Expression string
	Variables  map[string]decimal.Decimal
}

func (CustomProperties) Model() ChargeModel { return ModelCustom }

// EventSnapshot is the per-event view an aggregator may attach to its result.
type EventSnapshot struct {
	TransactionID string
	Timestamp     time.Time
	Units         decimal.Decimal
	// ProratedUnits is Units weighted by the share of the period the event was active.
	ProratedUnits decimal.Decimal
	Properties    map[string]any
}

// GroupKey identifies one group of a grouped aggregation.
type GroupKey map[string]string

// String renders the key with sorted field names so groups order deterministically.
func (k GroupKey) String() string {
	fields := make([]string, 0, len(k))
	for field := range k {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+"="+k[field])
	}
	return strings.Join(parts, ",")
}

type GroupedAggregation struct {
	Key    GroupKey
	Result AggregationResult
}

// AggregationResult is produced by the aggregation provider and read-only here.
type AggregationResult struct {
	AggregatedUnits decimal.Decimal
	// FullUnits is the unprorated total for prorated charges.
	FullUnits         decimal.Decimal
	EventCount        int64
	FreeUnitsConsumed decimal.Decimal
	Events            []EventSnapshot
	Groups            []GroupedAggregation
}

// ApplyOptions tweaks one strategy invocation.
type ApplyOptions struct {
	// ExcludeEvent marks the aggregation as the state before the triggering event,
	// so free allowances are not consumed twice.
	ExcludeEvent bool
}

type GroupFee struct {
	Key GroupKey             `json:"key"`
	Fee FeeComputationResult `json:"fee"`
}

// FeeComputationResult is a value; strategies never mutate one after returning it.
type FeeComputationResult struct {
	Amount        decimal.Decimal `json:"amount"`
	PreciseAmount decimal.Decimal `json:"precise_amount"`
	Units         decimal.Decimal `json:"units"`
	UnitAmount    decimal.Decimal `json:"unit_amount"`
	EventCount    int64           `json:"event_count"`
	Groups        []GroupFee      `json:"groups,omitempty"`
}
