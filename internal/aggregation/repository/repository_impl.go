package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	"github.com/smallbiznis/chargecore/internal/clock"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"github.com/smallbiznis/chargecore/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RepositoryParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Repository struct {
	log    *zap.Logger
	genID  *snowflake.Node
	events repository.Repository[aggregationdomain.UsageEvent]
	clock  clock.Clock
}

func NewRepository(p RepositoryParam) *Repository {
	return &Repository{
		log:    p.Log.Named("aggregation.repository"),
		genID:  p.GenID,
		events: repository.ProvideStore[aggregationdomain.UsageEvent](p.DB),
		clock:  p.Clock,
	}
}

func NewProvider(r *Repository) aggregationdomain.Provider { return r }

func NewRecorder(r *Repository) aggregationdomain.Recorder { return r }

func (r *Repository) Record(ctx context.Context, events ...*aggregationdomain.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := r.clock.Now().UTC()
	for _, event := range events {
		if event == nil {
			return aggregationdomain.ErrInvalidEventValue
		}
		event.SubscriptionID = strings.TrimSpace(event.SubscriptionID)
		event.MetricCode = strings.TrimSpace(event.MetricCode)
		event.TransactionID = strings.TrimSpace(event.TransactionID)
		if event.SubscriptionID == "" {
			return aggregationdomain.ErrInvalidSubscription
		}
		if event.MetricCode == "" {
			return aggregationdomain.ErrInvalidMetric
		}
		if event.TransactionID == "" || event.Timestamp.IsZero() {
			return aggregationdomain.ErrInvalidEventValue
		}
		if event.ID == 0 {
			event.ID = r.genID.Generate()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = now
		}
		event.Timestamp = event.Timestamp.UTC()
	}

	if err := r.events.BatchCreate(ctx, events); err != nil {
		r.log.Error("failed to record usage events", zap.Int("count", len(events)), zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Aggregate(ctx context.Context, req aggregationdomain.Request) (pricingdomain.AggregationResult, error) {
	if err := validateRequest(req); err != nil {
		return pricingdomain.AggregationResult{}, err
	}

	opts := []repository.QueryOption{
		repository.WithTimeRange("timestamp", req.From.UTC(), req.To.UTC()),
		repository.WithOrder("timestamp asc, id asc"),
	}
	if req.ExcludeTransactionID != "" {
		opts = append(opts, repository.WithNot("transaction_id", req.ExcludeTransactionID))
	}

	rows, err := r.events.Find(ctx, &aggregationdomain.UsageEvent{
		SubscriptionID: req.SubscriptionID,
		MetricCode:     req.Metric.Code,
	}, opts...)
	if err != nil {
		r.log.Error("failed to load usage events",
			zap.String("subscription_id", req.SubscriptionID),
			zap.String("metric_code", req.Metric.Code),
			zap.Error(err),
		)
		return pricingdomain.AggregationResult{}, err
	}

	rows = lo.Filter(rows, func(event *aggregationdomain.UsageEvent, _ int) bool {
		return matchesFilters(event, req.Filters)
	})

	result, err := aggregate(rows, req)
	if err != nil {
		return pricingdomain.AggregationResult{}, err
	}
	if len(req.GroupedBy) == 0 {
		return result, nil
	}

	grouped := lo.GroupBy(rows, func(event *aggregationdomain.UsageEvent) string {
		return groupKey(event, req.GroupedBy).String()
	})
	keys := lo.Keys(grouped)
	sort.Strings(keys)

	result.Groups = make([]pricingdomain.GroupedAggregation, 0, len(keys))
	for _, key := range keys {
		members := grouped[key]
		groupResult, err := aggregate(members, req)
		if err != nil {
			return pricingdomain.AggregationResult{}, err
		}
		result.Groups = append(result.Groups, pricingdomain.GroupedAggregation{
			Key:    groupKey(members[0], req.GroupedBy),
			Result: groupResult,
		})
	}
	return result, nil
}

func validateRequest(req aggregationdomain.Request) error {
	if strings.TrimSpace(req.SubscriptionID) == "" {
		return aggregationdomain.ErrInvalidSubscription
	}
	if strings.TrimSpace(req.Metric.Code) == "" {
		return aggregationdomain.ErrInvalidMetric
	}
	switch req.Metric.Aggregation {
	case aggregationdomain.AggregationCount:
	case aggregationdomain.AggregationSum, aggregationdomain.AggregationMax, aggregationdomain.AggregationUniqueCount:
		if strings.TrimSpace(req.Metric.FieldName) == "" {
			return aggregationdomain.ErrMissingField
		}
	default:
		return fmt.Errorf("%w: %s", aggregationdomain.ErrInvalidAggregation, req.Metric.Aggregation)
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		return aggregationdomain.ErrInvalidWindow
	}
	if req.Prorated && (req.From.IsZero() || req.To.IsZero()) {
		return aggregationdomain.ErrInvalidWindow
	}
	return nil
}

func aggregate(rows []*aggregationdomain.UsageEvent, req aggregationdomain.Request) (pricingdomain.AggregationResult, error) {
	result := pricingdomain.AggregationResult{
		AggregatedUnits:   decimal.Zero,
		FullUnits:         decimal.Zero,
		FreeUnitsConsumed: decimal.Zero,
		EventCount:        int64(len(rows)),
		Events:            make([]pricingdomain.EventSnapshot, 0, len(rows)),
	}

	seen := make(map[string]struct{})
	for i, event := range rows {
		units, err := eventUnits(event, req.Metric, seen)
		if err != nil {
			return pricingdomain.AggregationResult{}, err
		}

		prorated := units
		if req.Prorated && req.Metric.Aggregation != aggregationdomain.AggregationMax {
			prorated = units.Mul(remainingShare(event.Timestamp, req.From, req.To))
		}

		switch req.Metric.Aggregation {
		case aggregationdomain.AggregationMax:
			if i == 0 || units.GreaterThan(result.FullUnits) {
				result.FullUnits = units
				result.AggregatedUnits = units
			}
		default:
			result.FullUnits = result.FullUnits.Add(units)
			result.AggregatedUnits = result.AggregatedUnits.Add(prorated)
		}

		if req.FreeUnitsPerEvents != nil && int64(i) < *req.FreeUnitsPerEvents {
			result.FreeUnitsConsumed = result.FreeUnitsConsumed.Add(units)
		}

		result.Events = append(result.Events, pricingdomain.EventSnapshot{
			TransactionID: event.TransactionID,
			Timestamp:     event.Timestamp,
			Units:         units,
			ProratedUnits: prorated,
			Properties:    map[string]any(event.Properties),
		})
	}
	return result, nil
}

// eventUnits is what one event adds to the aggregate.
func eventUnits(event *aggregationdomain.UsageEvent, metric aggregationdomain.BillableMetric, seen map[string]struct{}) (decimal.Decimal, error) {
	switch metric.Aggregation {
	case aggregationdomain.AggregationCount:
		return decimal.NewFromInt(1), nil
	case aggregationdomain.AggregationUniqueCount:
		value, ok := event.Properties[metric.FieldName]
		if !ok || value == nil {
			return decimal.Zero, nil
		}
		key := fmt.Sprint(value)
		if _, dup := seen[key]; dup {
			return decimal.Zero, nil
		}
		seen[key] = struct{}{}
		return decimal.NewFromInt(1), nil
	default:
		value, ok := event.Properties[metric.FieldName]
		if !ok || value == nil {
			return decimal.Zero, nil
		}
		units, err := numericValue(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: transaction %s field %s", aggregationdomain.ErrInvalidEventValue, event.TransactionID, metric.FieldName)
		}
		return units, nil
	}
}

func numericValue(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported value %T", value)
	}
}

// remainingShare is the part of [from, to] still ahead of ts, in [0, 1].
// The window end is inclusive to the second.
func remainingShare(ts, from, to time.Time) decimal.Decimal {
	end := to.Add(time.Second)
	total := end.Sub(from)
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	left := end.Sub(ts)
	switch {
	case left <= 0:
		return decimal.Zero
	case left >= total:
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(left / time.Second)).
		Div(decimal.NewFromInt(int64(total / time.Second)))
}

func matchesFilters(event *aggregationdomain.UsageEvent, filters map[string]string) bool {
	for field, want := range filters {
		value, ok := event.Properties[field]
		if !ok || fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}

func groupKey(event *aggregationdomain.UsageEvent, fields []string) pricingdomain.GroupKey {
	key := make(pricingdomain.GroupKey, len(fields))
	for _, field := range fields {
		value, ok := event.Properties[field]
		if !ok || value == nil {
			key[field] = ""
			continue
		}
		key[field] = fmt.Sprint(value)
	}
	return key
}
