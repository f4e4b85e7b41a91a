package service

import (
	"context"

	"github.com/shopspring/decimal"
	instantfeedomain "github.com/smallbiznis/chargecore/internal/instantfee/domain"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Factory pricingdomain.Factory
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	factory pricingdomain.Factory
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) instantfeedomain.Service {
	return &Service{
		log:     p.Log.Named("instantfee.service"),
		factory: p.Factory,
		metrics: p.Metrics,
	}
}

func (s *Service) ComputeIncrementalFee(ctx context.Context, req instantfeedomain.IncrementalFeeRequest) (pricingdomain.FeeComputationResult, error) {
	if !req.Charge.PayInAdvance {
		return pricingdomain.FeeComputationResult{}, pricingdomain.ErrChargeNotInstantOrPayInAdvance
	}

	log := logger.WithCharge(s.log, req.Charge.ChargeID, string(req.Charge.Model)).
		With(zap.String("transaction_id", req.Event.TransactionID))

	strategy, err := s.factory.Select(req.Charge, req.After)
	if err != nil {
		return pricingdomain.FeeComputationResult{}, err
	}

	after, err := strategy.Apply(req.After, pricingdomain.ApplyOptions{})
	if err != nil {
		log.Warn("pricing usage after event failed", zap.Error(err))
		return pricingdomain.FeeComputationResult{}, err
	}
	before, err := strategy.Apply(req.Before, pricingdomain.ApplyOptions{ExcludeEvent: true})
	if err != nil {
		log.Warn("pricing usage before event failed", zap.Error(err))
		return pricingdomain.FeeComputationResult{}, err
	}

	fee := difference(after, before)
	s.metrics.RecordIncrementalFee(ctx, string(req.Charge.Model))
	log.Debug("incremental fee computed",
		zap.String("amount", fee.Amount.String()),
		zap.String("units", fee.Units.String()),
	)
	return fee, nil
}

func difference(after, before pricingdomain.FeeComputationResult) pricingdomain.FeeComputationResult {
	fee := pricingdomain.FeeComputationResult{
		Amount:        after.Amount.Sub(before.Amount),
		PreciseAmount: after.PreciseAmount.Sub(before.PreciseAmount),
		Units:         after.Units.Sub(before.Units),
		UnitAmount:    decimal.Zero,
		EventCount:    after.EventCount - before.EventCount,
	}
	if fee.Units.IsPositive() {
		fee.UnitAmount = fee.Amount.Div(fee.Units)
	}
	return fee
}
