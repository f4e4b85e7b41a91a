package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	"github.com/smallbiznis/chargecore/internal/clock"
	feedomain "github.com/smallbiznis/chargecore/internal/fee/domain"
	instantfeedomain "github.com/smallbiznis/chargecore/internal/instantfee/domain"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	"github.com/smallbiznis/chargecore/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Periods     billingperioddomain.Service
	Aggregation aggregationdomain.Provider
	Factory     pricingdomain.Factory
	Instant     instantfeedomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	periods     billingperioddomain.Service
	aggregation aggregationdomain.Provider
	factory     pricingdomain.Factory
	instant     instantfeedomain.Service
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) feedomain.Service {
	return &Service{
		log:         p.Log.Named("fee.service"),
		clock:       p.Clock,
		periods:     p.Periods,
		aggregation: p.Aggregation,
		factory:     p.Factory,
		instant:     p.Instant,
		metrics:     p.Metrics,
	}
}

func (s *Service) ComputePeriodFee(ctx context.Context, req feedomain.PeriodFeeRequest) (_ feedomain.Fee, err error) {
	ctx, span := s.startSpan(ctx, "fee.ComputePeriodFee", req.Subscription.SubscriptionID, req.Charge)
	defer func() { endSpan(span, err) }()

	reference := req.Reference
	if reference.IsZero() {
		reference = s.clock.Now()
	}
	log := s.chargeLogger(ctx, req.Subscription.SubscriptionID, req.Charge)

	calculator, err := s.periods.CalculatorFor(req.Subscription)
	if err != nil {
		return feedomain.Fee{}, err
	}
	boundary, err := s.periods.Compute(ctx, req.Subscription, reference, req.CurrentUsage)
	if err != nil {
		return feedomain.Fee{}, err
	}
	if boundary == nil {
		log.Debug("no billable period yet", zap.Time("reference", reference))
		return feedomain.Fee{Result: emptyResult()}, nil
	}

	agg, err := s.aggregation.Aggregate(ctx, aggregationRequest(req.Subscription.SubscriptionID, req.Charge, req.Metric, req.Filters, boundary))
	if err != nil {
		log.Warn("aggregating usage failed", zap.Error(err))
		return feedomain.Fee{}, err
	}

	strategy, err := s.factory.Select(req.Charge, agg)
	if err != nil {
		return feedomain.Fee{}, err
	}
	result, err := strategy.Apply(agg, pricingdomain.ApplyOptions{})
	if err != nil {
		log.Warn("pricing usage failed", zap.Error(err))
		return feedomain.Fee{}, err
	}

	s.metrics.RecordFeeComputation(ctx, string(req.Charge.Model))
	log.Debug("period fee computed",
		zap.Time("charges_from", boundary.ChargesFromDatetime),
		zap.Time("charges_to", boundary.ChargesToDatetime),
		zap.String("amount", result.Amount.String()),
	)

	return feedomain.Fee{
		Boundary:              boundary,
		ChargesDurationInDays: calculator.ChargesDurationInDays(reference, req.CurrentUsage),
		Result:                result,
	}, nil
}

func (s *Service) ComputeInstantFee(ctx context.Context, req feedomain.InstantFeeRequest) (_ feedomain.Fee, err error) {
	ctx, span := s.startSpan(ctx, "fee.ComputeInstantFee", req.Subscription.SubscriptionID, req.Charge)
	defer func() { endSpan(span, err) }()

	txID := strings.TrimSpace(req.TransactionID)
	if txID == "" {
		return feedomain.Fee{}, feedomain.ErrMissingTransaction
	}
	if !req.Charge.PayInAdvance {
		return feedomain.Fee{}, pricingdomain.ErrChargeNotInstantOrPayInAdvance
	}
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = s.clock.Now()
	}

	boundary, err := s.periods.Compute(ctx, req.Subscription, timestamp, true)
	if err != nil {
		return feedomain.Fee{}, err
	}
	if boundary == nil {
		return feedomain.Fee{Result: emptyResult()}, nil
	}

	aggReq := aggregationRequest(req.Subscription.SubscriptionID, req.Charge, req.Metric, req.Filters, boundary)
	after, err := s.aggregation.Aggregate(ctx, aggReq)
	if err != nil {
		return feedomain.Fee{}, err
	}
	aggReq.ExcludeTransactionID = txID
	before, err := s.aggregation.Aggregate(ctx, aggReq)
	if err != nil {
		return feedomain.Fee{}, err
	}

	result, err := s.instant.ComputeIncrementalFee(ctx, instantfeedomain.IncrementalFeeRequest{
		Charge: req.Charge,
		Before: before,
		After:  after,
		Event:  eventSnapshot(after.Events, txID, timestamp),
	})
	if err != nil {
		return feedomain.Fee{}, err
	}
	s.chargeLogger(ctx, req.Subscription.SubscriptionID, req.Charge).Debug("instant fee computed",
		zap.String("transaction_id", txID),
		zap.String("amount", result.Amount.String()),
	)
	return feedomain.Fee{Boundary: boundary, Result: result}, nil
}

func (s *Service) startSpan(ctx context.Context, name, subscriptionID string, charge pricingdomain.ChargeConfiguration) (context.Context, trace.Span) {
	ctx, _ = tracing.EnsureCorrelationID(ctx)
	return tracing.Tracer("chargecore/fee").Start(ctx, name, trace.WithAttributes(
		attribute.String("subscription_id", subscriptionID),
		attribute.String("charge_id", charge.ChargeID),
		attribute.String("charge_model", string(charge.Model)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) chargeLogger(ctx context.Context, subscriptionID string, charge pricingdomain.ChargeConfiguration) *zap.Logger {
	log := logger.WithContext(ctx, s.log)
	return logger.WithCharge(logger.WithSubscription(log, subscriptionID), charge.ChargeID, string(charge.Model))
}

func aggregationRequest(
	subscriptionID string,
	charge pricingdomain.ChargeConfiguration,
	metric aggregationdomain.BillableMetric,
	filters map[string]string,
	boundary *billingperioddomain.PeriodBoundary,
) aggregationdomain.Request {
	req := aggregationdomain.Request{
		SubscriptionID: subscriptionID,
		Metric:         metric,
		From:           boundary.ChargesFromDatetime,
		To:             boundary.ChargesToDatetime,
		Filters:        filters,
		GroupedBy:      charge.GroupedBy,
		Prorated:       charge.Prorated,
	}
	if props, ok := charge.Properties.(pricingdomain.PercentageProperties); ok {
		req.FreeUnitsPerEvents = props.FreeUnitsPerEvents
	}
	return req
}

func eventSnapshot(events []pricingdomain.EventSnapshot, txID string, timestamp time.Time) pricingdomain.EventSnapshot {
	for _, event := range events {
		if event.TransactionID == txID {
			return event
		}
	}
	return pricingdomain.EventSnapshot{TransactionID: txID, Timestamp: timestamp, Units: decimal.Zero, ProratedUnits: decimal.Zero}
}

func emptyResult() pricingdomain.FeeComputationResult {
	return pricingdomain.FeeComputationResult{
		Amount:        decimal.Zero,
		PreciseAmount: decimal.Zero,
		Units:         decimal.Zero,
		UnitAmount:    decimal.Zero,
	}
}
