package observability

import (
	"strings"

	"github.com/smallbiznis/chargecore/internal/config"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/metrics"
	"github.com/smallbiznis/chargecore/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		loggerConfig,
		logger.New,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		tracingConfig,
		tracing.NewTracerProvider,
	),
	// Nothing injects the tracer provider; it registers itself as the otel global.
	fx.Invoke(func(trace.TracerProvider) {}),
)

func loggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Debug:       debugEnabled(cfg),
	}
}

func metricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OTLPEnabled,
		ExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		ExporterProtocol: cfg.OTLPProtocol,
		ServiceName:      cfg.AppName,
		Environment:      cfg.Environment,
	}
}

func tracingConfig(cfg config.Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OTLPEnabled,
		ExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		ExporterProtocol: cfg.OTLPProtocol,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
	}
}

func debugEnabled(cfg config.Config) bool {
	if strings.EqualFold(cfg.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
