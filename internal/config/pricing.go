package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig carries rounding and calendar settings shared by the pricing engine.
type PricingConfig struct {
	DefaultPrecision   int32            `mapstructure:"defaultPrecision"`
	PreciseScale       int32            `mapstructure:"preciseScale"`
	DefaultTimezone    string           `mapstructure:"defaultTimezone"`
	CurrencyPrecisions map[string]int32 `mapstructure:"currencyPrecisions"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultPrecision: 2,
		PreciseScale:     15,
		DefaultTimezone:  "UTC",
		CurrencyPrecisions: map[string]int32{
			"usd": 2,
			"eur": 2,
			"idr": 2,
			"jpy": 0,
			"krw": 0,
			"kwd": 3,
			"bhd": 3,
		},
	}
}

// PrecisionFor returns the number of minor-unit digits used to round amounts in currency.
func (c PricingConfig) PrecisionFor(currency string) int32 {
	// viper lower-cases map keys
	if p, ok := c.CurrencyPrecisions[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return p
	}
	return c.DefaultPrecision
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingConfigHolder reads pricing.yml and keeps it hot-reloaded.
func NewPricingConfigHolder(appCfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	v := viper.New()

	if appCfg.PricingConfigPath != "" {
		v.SetConfigFile(appCfg.PricingConfigPath)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/chargecore")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CHARGECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.defaultPrecision", defaults.DefaultPrecision)
	v.SetDefault("pricing.preciseScale", defaults.PreciseScale)
	v.SetDefault("pricing.defaultTimezone", defaults.DefaultTimezone)
	v.SetDefault("pricing.currencyPrecisions", defaults.CurrencyPrecisions)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodePricingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricingConfig(v)
		if err != nil {
			log.Warn("pricing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticPricingConfigHolder wraps a fixed config, mostly for tests and tooling.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func decodePricingConfig(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.DefaultPrecision < 0 || cfg.DefaultPrecision > 8 {
		return fmt.Errorf("pricing.defaultPrecision out of range: %d", cfg.DefaultPrecision)
	}
	if cfg.PreciseScale < cfg.DefaultPrecision {
		return errors.New("pricing.preciseScale must not be lower than defaultPrecision")
	}
	for currency, precision := range cfg.CurrencyPrecisions {
		if precision < 0 || precision > cfg.PreciseScale {
			return fmt.Errorf("pricing.currencyPrecisions.%s out of range: %d", currency, precision)
		}
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return fmt.Errorf("pricing.defaultTimezone: %w", err)
	}
	return nil
}
