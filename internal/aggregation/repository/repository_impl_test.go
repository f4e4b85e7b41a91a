package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	"github.com/smallbiznis/chargecore/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var recordedAt = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&aggregationdomain.UsageEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewRepository(RepositoryParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(recordedAt),
	})
}

func usageEvent(txID string, ts time.Time, props map[string]any) *aggregationdomain.UsageEvent {
	return &aggregationdomain.UsageEvent{
		SubscriptionID: "sub_1",
		MetricCode:     "api_calls",
		TransactionID:  txID,
		Timestamp:      ts,
		Properties:     datatypes.JSONMap(props),
	}
}

func seedEvents(t *testing.T, repo *Repository) {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(context.Background(),
		usageEvent("tx_1", base.Add(1*time.Hour), map[string]any{"value": 10, "region": "eu", "user": "a"}),
		usageEvent("tx_2", base.Add(2*time.Hour), map[string]any{"value": 5, "region": "us", "user": "b"}),
		usageEvent("tx_3", base.Add(3*time.Hour), map[string]any{"value": "7.5", "region": "eu", "user": "a"}),
		usageEvent("tx_old", base.Add(-time.Hour), map[string]any{"value": 100, "region": "eu", "user": "c"}),
	))
}

func marchWindow() (time.Time, time.Time) {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
}

func TestRecordAssignsIdentifiers(t *testing.T) {
	repo := setupRepository(t)
	event := usageEvent("tx_1", time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), map[string]any{"value": 1})

	require.NoError(t, repo.Record(context.Background(), event))

	assert.NotZero(t, event.ID)
	assert.Equal(t, recordedAt, event.CreatedAt)
}

func TestRecordRejectsIncompleteEvents(t *testing.T) {
	repo := setupRepository(t)
	ts := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)

	noSub := usageEvent("tx_1", ts, nil)
	noSub.SubscriptionID = " "
	assert.ErrorIs(t, repo.Record(context.Background(), noSub), aggregationdomain.ErrInvalidSubscription)

	noMetric := usageEvent("tx_2", ts, nil)
	noMetric.MetricCode = ""
	assert.ErrorIs(t, repo.Record(context.Background(), noMetric), aggregationdomain.ErrInvalidMetric)

	noTx := usageEvent("", ts, nil)
	assert.ErrorIs(t, repo.Record(context.Background(), noTx), aggregationdomain.ErrInvalidEventValue)
}

func TestAggregateByType(t *testing.T) {
	repo := setupRepository(t)
	seedEvents(t, repo)
	from, to := marchWindow()

	tests := []struct {
		name   string
		metric aggregationdomain.BillableMetric
		units  string
	}{
		{"count", aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationCount}, "3"},
		{"sum", aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"}, "22.5"},
		{"max", aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationMax, FieldName: "value"}, "10"},
		{"unique count", aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationUniqueCount, FieldName: "user"}, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
				SubscriptionID: "sub_1",
				Metric:         tt.metric,
				From:           from,
				To:             to,
			})
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.units).Equal(result.AggregatedUnits), "got %s", result.AggregatedUnits)
			assert.Equal(t, int64(3), result.EventCount)
			assert.Len(t, result.Events, 3)
		})
	}
}

func TestAggregateFiltersAndExclusion(t *testing.T) {
	repo := setupRepository(t)
	seedEvents(t, repo)
	from, to := marchWindow()

	result, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID:       "sub_1",
		Metric:               aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"},
		From:                 from,
		To:                   to,
		Filters:              map[string]string{"region": "eu"},
		ExcludeTransactionID: "tx_3",
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(result.AggregatedUnits))
	assert.Equal(t, int64(1), result.EventCount)
}

func TestAggregateGroups(t *testing.T) {
	repo := setupRepository(t)
	seedEvents(t, repo)
	from, to := marchWindow()

	result, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"},
		From:           from,
		To:             to,
		GroupedBy:      []string{"region"},
	})
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.Equal(t, "region=eu", result.Groups[0].Key.String())
	assert.True(t, decimal.RequireFromString("17.5").Equal(result.Groups[0].Result.AggregatedUnits))
	assert.Equal(t, "region=us", result.Groups[1].Key.String())
	assert.True(t, decimal.NewFromInt(5).Equal(result.Groups[1].Result.AggregatedUnits))
	assert.True(t, decimal.RequireFromString("22.5").Equal(result.AggregatedUnits))
}

func TestAggregateFreeUnitsPerEvents(t *testing.T) {
	repo := setupRepository(t)
	seedEvents(t, repo)
	from, to := marchWindow()
	free := int64(2)

	result, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID:     "sub_1",
		Metric:             aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"},
		From:               from,
		To:                 to,
		FreeUnitsPerEvents: &free,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(15).Equal(result.FreeUnitsConsumed))
}

func TestAggregateProrated(t *testing.T) {
	repo := setupRepository(t)
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC)
	require.NoError(t, repo.Record(context.Background(),
		usageEvent("tx_start", from, map[string]any{"value": 30}),
		usageEvent("tx_mid", time.Date(2024, 4, 16, 0, 0, 0, 0, time.UTC), map[string]any{"value": 30}),
	))

	result, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"},
		From:           from,
		To:             to,
		Prorated:       true,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(60).Equal(result.FullUnits))
	assert.True(t, decimal.NewFromInt(45).Equal(result.AggregatedUnits), "got %s", result.AggregatedUnits)
	require.Len(t, result.Events, 2)
	assert.True(t, decimal.NewFromInt(15).Equal(result.Events[1].ProratedUnits))
}

func TestAggregateRejectsInvalidRequests(t *testing.T) {
	repo := setupRepository(t)
	from, to := marchWindow()

	_, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: "median"},
	})
	assert.ErrorIs(t, err, aggregationdomain.ErrInvalidAggregation)

	_, err = repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum},
	})
	assert.ErrorIs(t, err, aggregationdomain.ErrMissingField)

	_, err = repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationCount},
		From:           to,
		To:             from,
	})
	assert.ErrorIs(t, err, aggregationdomain.ErrInvalidWindow)
}

func TestAggregateRejectsNonNumericValues(t *testing.T) {
	repo := setupRepository(t)
	from, to := marchWindow()
	require.NoError(t, repo.Record(context.Background(),
		usageEvent("tx_bad", from.Add(time.Hour), map[string]any{"value": "lots"}),
	))

	_, err := repo.Aggregate(context.Background(), aggregationdomain.Request{
		SubscriptionID: "sub_1",
		Metric:         aggregationdomain.BillableMetric{Code: "api_calls", Aggregation: aggregationdomain.AggregationSum, FieldName: "value"},
		From:           from,
		To:             to,
	})
	assert.ErrorIs(t, err, aggregationdomain.ErrInvalidEventValue)
}
