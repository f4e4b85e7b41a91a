package metrics

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type counterID int

const (
	feeComputations counterID = iota
	incrementalFees
	periodComputations
	configErrors
	strategySelected
)

var counterSpecs = []struct {
	id          counterID
	name        string
	description string
}{
	{feeComputations, "chargecore_fee_computations_total", "Period fees computed, by charge model."},
	{incrementalFees, "chargecore_incremental_fees_total", "Pay-in-advance fees computed per event."},
	{periodComputations, "chargecore_period_computations_total", "Billing period boundaries resolved."},
	{configErrors, "chargecore_config_errors_total", "Charge configurations rejected by validation."},
	{strategySelected, "chargecore_strategy_selected_total", "Pricing strategies picked by the factory."},
}

// Metrics holds the pricing counters. A nil *Metrics records nothing.
type Metrics struct {
	counters map[counterID]metric.Int64Counter
}

// New registers the pricing counters on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(cfg.serviceName())

	m := &Metrics{counters: make(map[counterID]metric.Int64Counter, len(counterSpecs))}
	for _, spec := range counterSpecs {
		counter, err := meter.Int64Counter(spec.name,
			metric.WithDescription(spec.description),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			return nil, err
		}
		m.counters[spec.id] = counter
	}
	return m, nil
}

// NewNoop returns counters bound to a noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) inc(ctx context.Context, id counterID, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	counter, ok := m.counters[id]
	if !ok {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

func (m *Metrics) RecordFeeComputation(ctx context.Context, model string) {
	m.inc(ctx, feeComputations, label("charge_model", model))
}

func (m *Metrics) RecordIncrementalFee(ctx context.Context, model string) {
	m.inc(ctx, incrementalFees, label("charge_model", model))
}

func (m *Metrics) RecordPeriodComputation(ctx context.Context, interval, timing string) {
	m.inc(ctx, periodComputations, label("interval", interval), label("timing", timing))
}

// RecordConfigError counts rejected charge configurations by error code.
func (m *Metrics) RecordConfigError(ctx context.Context, model, reason string) {
	m.inc(ctx, configErrors, label("charge_model", model), label("reason", reason))
}

func (m *Metrics) RecordStrategySelected(ctx context.Context, model string, grouped bool) {
	m.inc(ctx, strategySelected, label("charge_model", model), attribute.Bool("grouped", grouped))
}

// FilterAttributes keeps only low-cardinality label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		switch attr.Key {
		case "charge_model", "interval", "timing", "grouped", "reason":
			out = append(out, attr)
		}
	}
	return out
}
