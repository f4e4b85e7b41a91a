package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/chargecore/internal/config"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/chargecore/internal/pricing/domain"
	"github.com/smallbiznis/chargecore/internal/pricing/ranges"
	"github.com/smallbiznis/chargecore/internal/pricing/strategy"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type FactoryParam struct {
	fx.In

	Log       *zap.Logger
	Pricing   *config.PricingConfigHolder
	Evaluator pricingdomain.Evaluator `optional:"true"`
	Metrics   *metrics.Metrics        `optional:"true"`
}

type Factory struct {
	log       *zap.Logger
	pricing   *config.PricingConfigHolder
	evaluator pricingdomain.Evaluator
	metrics   *metrics.Metrics
}

func NewFactory(p FactoryParam) pricingdomain.Factory {
	return &Factory{
		log:       p.Log.Named("pricing.factory"),
		pricing:   p.Pricing,
		evaluator: p.Evaluator,
		metrics:   p.Metrics,
	}
}

func (f *Factory) Select(cfg pricingdomain.ChargeConfiguration, agg pricingdomain.AggregationResult) (pricingdomain.PricingStrategy, error) {
	log := logger.WithCharge(f.log, cfg.ChargeID, string(cfg.Model))

	base, err := f.baseStrategy(cfg)
	if err != nil {
		log.Warn("charge configuration rejected", zap.Error(err))
		f.metrics.RecordConfigError(context.Background(), string(cfg.Model), errorCode(err))
		return nil, err
	}

	grouped := len(cfg.GroupedBy) > 0 && len(agg.Groups) > 0
	f.metrics.RecordStrategySelected(context.Background(), string(cfg.Model), grouped)
	if grouped {
		return strategy.NewGrouped(base, f.rounding(cfg.Currency)), nil
	}
	return base, nil
}

func (f *Factory) baseStrategy(cfg pricingdomain.ChargeConfiguration) (pricingdomain.PricingStrategy, error) {
	if !cfg.Model.Valid() {
		return nil, fmt.Errorf("%w: %s", pricingdomain.ErrUnsupportedModel, cfg.Model)
	}
	if cfg.Properties == nil || cfg.Properties.Model() != cfg.Model {
		return nil, pricingdomain.NewValidationError(cfg.Model, pricingdomain.ErrInvalidProperties, "properties do not match the charge model")
	}

	rounding := f.rounding(cfg.Currency)

	switch props := cfg.Properties.(type) {
	case pricingdomain.StandardProperties:
		return strategy.NewStandard(props, rounding), nil
	case pricingdomain.GraduatedProperties:
		if err := ranges.ValidateTiers(props.Ranges); err != nil {
			return nil, pricingdomain.NewValidationError(cfg.Model, err, err.Error())
		}
		if cfg.Prorated {
			return strategy.NewProratedGraduated(props, rounding), nil
		}
		return strategy.NewGraduated(props, rounding), nil
	case pricingdomain.VolumeProperties:
		if err := ranges.ValidateTiers(props.Ranges); err != nil {
			return nil, pricingdomain.NewValidationError(cfg.Model, err, err.Error())
		}
		return strategy.NewVolume(props, rounding), nil
	case pricingdomain.PackageProperties:
		if !props.PackageSize.IsPositive() {
			return nil, pricingdomain.NewValidationError(cfg.Model, pricingdomain.ErrInvalidProperties, "package_size must be positive")
		}
		return strategy.NewPackage(props, rounding), nil
	case pricingdomain.PercentageProperties:
		return strategy.NewPercentage(props, rounding), nil
	case pricingdomain.GraduatedPercentageProperties:
		if err := ranges.ValidatePercentageTiers(props.Ranges); err != nil {
			return nil, pricingdomain.NewValidationError(cfg.Model, err, err.Error())
		}
		return strategy.NewGraduatedPercentage(props, rounding), nil
	case pricingdomain.DynamicProperties:
		if f.evaluator == nil {
			return nil, pricingdomain.ErrMissingEvaluator
		}
		return strategy.NewDynamic(props, f.evaluator, rounding), nil
	case pricingdomain.CustomProperties:
		if f.evaluator == nil {
			return nil, pricingdomain.ErrMissingEvaluator
		}
		return strategy.NewCustom(props, f.evaluator, rounding), nil
	default:
		return nil, fmt.Errorf("%w: %s", pricingdomain.ErrUnsupportedModel, cfg.Model)
	}
}

func (f *Factory) rounding(currency string) strategy.Rounding {
	cfg := config.DefaultPricingConfig()
	if f.pricing != nil {
		cfg = f.pricing.Get()
	}
	return strategy.Rounding{
		Precision:    cfg.PrecisionFor(currency),
		PreciseScale: cfg.PreciseScale,
	}
}

func errorCode(err error) string {
	var verr *pricingdomain.ValidationError
	if errors.As(err, &verr) {
		return verr.Code()
	}
	return err.Error()
}
