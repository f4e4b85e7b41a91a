package service

import (
	"context"
	"time"

	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	"github.com/smallbiznis/chargecore/internal/config"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	pricing *config.PricingConfigHolder
	metrics *metrics.Metrics
}

func NewService(p ServiceParam) billingperioddomain.Service {
	return &Service{
		log:     p.Log.Named("billingperiod.service"),
		pricing: p.Pricing,
		metrics: p.Metrics,
	}
}

func (s *Service) CalculatorFor(sub billingperioddomain.SubscriptionBillingContext) (billingperioddomain.Calculator, error) {
	return NewCalculator(sub, s.defaultTimezone())
}

func (s *Service) Compute(ctx context.Context, sub billingperioddomain.SubscriptionBillingContext, reference time.Time, currentUsage bool) (*billingperioddomain.PeriodBoundary, error) {
	log := logger.WithSubscription(s.log, sub.SubscriptionID)

	calc, err := s.CalculatorFor(sub)
	if err != nil {
		log.Warn("cannot build period calculator",
			zap.String("interval", string(sub.Interval)),
			zap.String("timing", string(sub.Timing)),
			zap.Error(err),
		)
		return nil, err
	}

	boundary := calc.Compute(reference, currentUsage)
	s.metrics.RecordPeriodComputation(ctx, string(sub.Interval), string(sub.Timing))

	if boundary == nil {
		log.Debug("no billing period yet", zap.Time("reference", reference))
		return nil, nil
	}

	log.Debug("billing period computed",
		zap.Time("from", boundary.FromDatetime),
		zap.Time("to", boundary.ToDatetime),
		zap.Time("charges_from", boundary.ChargesFromDatetime),
		zap.Time("charges_to", boundary.ChargesToDatetime),
		zap.String("timezone", boundary.Timezone),
	)
	return boundary, nil
}

func (s *Service) defaultTimezone() string {
	if s.pricing == nil {
		return ""
	}
	return s.pricing.Get().DefaultTimezone
}
