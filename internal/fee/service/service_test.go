package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	aggregationrepo "github.com/smallbiznis/chargecore/internal/aggregation/repository"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	billingperiodservice "github.com/smallbiznis/chargecore/internal/billingperiod/service"
	"github.com/smallbiznis/chargecore/internal/clock"
	"github.com/smallbiznis/chargecore/internal/config"
	feedomain "github.com/smallbiznis/chargecore/internal/fee/domain"
	instantfeeservice "github.com/smallbiznis/chargecore/internal/instantfee/service"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"github.com/smallbiznis/chargecore/internal/pricing/properties"
	pricingservice "github.com/smallbiznis/chargecore/internal/pricing/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var valueMetric = aggregationdomain.BillableMetric{
	Code:        "storage_gb",
	Aggregation: aggregationdomain.AggregationSum,
	FieldName:   "value",
}

type testStack struct {
	svc      feedomain.Service
	recorder aggregationdomain.Recorder
	clock    *clock.FakeClock
}

func setupFeeService(t *testing.T) testStack {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&aggregationdomain.UsageEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	holder := config.NewStaticPricingConfigHolder(config.DefaultPricingConfig())
	noop := metrics.NewNoop()

	fakeClock := clock.NewFakeClock(time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC))
	repo := aggregationrepo.NewRepository(aggregationrepo.RepositoryParam{DB: db, Log: log, GenID: node, Clock: fakeClock})
	factory := pricingservice.NewFactory(pricingservice.FactoryParam{Log: log, Pricing: holder, Metrics: noop})

	svc := NewService(ServiceParam{
		Log:         log,
		Clock:       fakeClock,
		Periods:     billingperiodservice.NewService(billingperiodservice.ServiceParam{Log: log, Pricing: holder, Metrics: noop}),
		Aggregation: aggregationrepo.NewProvider(repo),
		Factory:     factory,
		Instant:     instantfeeservice.NewService(instantfeeservice.ServiceParam{Log: log, Factory: factory, Metrics: noop}),
		Metrics:     noop,
	})
	return testStack{svc: svc, recorder: aggregationrepo.NewRecorder(repo), clock: fakeClock}
}

func record(t *testing.T, recorder aggregationdomain.Recorder, txID string, ts time.Time, value int) {
	t.Helper()
	require.NoError(t, recorder.Record(context.Background(), &aggregationdomain.UsageEvent{
		SubscriptionID: "sub_1",
		MetricCode:     valueMetric.Code,
		TransactionID:  txID,
		Timestamp:      ts,
		Properties:     datatypes.JSONMap{"value": value},
	}))
}

func monthlyCalendar(startedAt time.Time) billingperioddomain.SubscriptionBillingContext {
	return billingperioddomain.SubscriptionBillingContext{
		SubscriptionID: "sub_1",
		SubscriptionAt: startedAt,
		StartedAt:      startedAt,
		Interval:       billingperioddomain.IntervalMonthly,
		Timing:         billingperioddomain.TimingCalendar,
	}
}

func parseCharge(t *testing.T, input properties.ChargeInput) pricingdomain.ChargeConfiguration {
	t.Helper()
	charge, err := properties.ParseCharge(input)
	require.NoError(t, err)
	return charge
}

func graduatedCharge(t *testing.T) pricingdomain.ChargeConfiguration {
	return parseCharge(t, properties.ChargeInput{
		ID:       "charge_storage",
		Model:    "graduated",
		Currency: "USD",
		Properties: json.RawMessage(`{"graduated_ranges": [
			{"from_value": 0, "to_value": 2, "per_unit_amount": "2", "flat_amount": "0"},
			{"from_value": 3, "to_value": null, "per_unit_amount": "3", "flat_amount": "0"}
		]}`),
	})
}

func TestComputePeriodFee_ArrearsMonth(t *testing.T) {
	stack := setupFeeService(t)
	record(t, stack.recorder, "tx_feb", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), 50)
	record(t, stack.recorder, "tx_1", time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), 3)
	record(t, stack.recorder, "tx_2", time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC), 2)
	record(t, stack.recorder, "tx_apr", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), 40)

	fee, err := stack.svc.ComputePeriodFee(context.Background(), feedomain.PeriodFeeRequest{
		Subscription: monthlyCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Charge:       graduatedCharge(t),
		Metric:       valueMetric,
		Reference:    time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NotNil(t, fee.Boundary)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), fee.Boundary.ChargesFromDatetime)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), fee.Boundary.ChargesToDatetime)
	assert.Equal(t, 31, fee.ChargesDurationInDays)
	assert.True(t, decimal.NewFromInt(5).Equal(fee.Result.Units))
	assert.True(t, decimal.NewFromInt(13).Equal(fee.Result.Amount), "got %s", fee.Result.Amount)
	assert.Equal(t, int64(2), fee.Result.EventCount)
}

func TestComputePeriodFee_DefaultsReferenceToClock(t *testing.T) {
	stack := setupFeeService(t)
	record(t, stack.recorder, "tx_1", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 1)
	stack.clock.Set(time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC))

	fee, err := stack.svc.ComputePeriodFee(context.Background(), feedomain.PeriodFeeRequest{
		Subscription: monthlyCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Charge:       graduatedCharge(t),
		Metric:       valueMetric,
	})
	require.NoError(t, err)

	require.NotNil(t, fee.Boundary)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), fee.Boundary.FromDatetime)
	assert.True(t, decimal.NewFromInt(2).Equal(fee.Result.Amount))
}

func TestComputePeriodFee_NoBoundaryYet(t *testing.T) {
	stack := setupFeeService(t)

	fee, err := stack.svc.ComputePeriodFee(context.Background(), feedomain.PeriodFeeRequest{
		Subscription: monthlyCalendar(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		Charge:       graduatedCharge(t),
		Metric:       valueMetric,
		Reference:    time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Nil(t, fee.Boundary)
	assert.True(t, fee.Result.Amount.IsZero())
}

func TestComputePeriodFee_PropagatesConfigErrors(t *testing.T) {
	stack := setupFeeService(t)
	sub := monthlyCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	sub.Interval = "fortnightly"

	_, err := stack.svc.ComputePeriodFee(context.Background(), feedomain.PeriodFeeRequest{
		Subscription: sub,
		Charge:       graduatedCharge(t),
		Metric:       valueMetric,
		Reference:    time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, billingperioddomain.ErrUnsupportedInterval)
}

func TestComputeInstantFee_PricesTheEventDelta(t *testing.T) {
	stack := setupFeeService(t)
	record(t, stack.recorder, "tx_1", time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), 3)
	record(t, stack.recorder, "tx_2", time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), 4)

	charge := parseCharge(t, properties.ChargeInput{
		ID:           "charge_seats",
		Model:        "standard",
		Currency:     "USD",
		PayInAdvance: true,
		Properties:   json.RawMessage(`{"amount": "2"}`),
	})

	fee, err := stack.svc.ComputeInstantFee(context.Background(), feedomain.InstantFeeRequest{
		Subscription:  monthlyCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		Charge:        charge,
		Metric:        valueMetric,
		TransactionID: "tx_2",
		Timestamp:     time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NotNil(t, fee.Boundary)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), fee.Boundary.ChargesFromDatetime)
	assert.True(t, decimal.NewFromInt(8).Equal(fee.Result.Amount), "got %s", fee.Result.Amount)
	assert.True(t, decimal.NewFromInt(4).Equal(fee.Result.Units))
	assert.True(t, decimal.NewFromInt(2).Equal(fee.Result.UnitAmount))
}

func TestComputeInstantFee_Errors(t *testing.T) {
	stack := setupFeeService(t)
	sub := monthlyCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	_, err := stack.svc.ComputeInstantFee(context.Background(), feedomain.InstantFeeRequest{
		Subscription: sub,
		Charge:       graduatedCharge(t),
		Metric:       valueMetric,
	})
	assert.ErrorIs(t, err, feedomain.ErrMissingTransaction)

	_, err = stack.svc.ComputeInstantFee(context.Background(), feedomain.InstantFeeRequest{
		Subscription:  sub,
		Charge:        graduatedCharge(t),
		Metric:        valueMetric,
		TransactionID: "tx_1",
	})
	assert.ErrorIs(t, err, pricingdomain.ErrChargeNotInstantOrPayInAdvance)
}
