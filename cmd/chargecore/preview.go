package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/chargecore/internal/aggregation/domain"
	billingperioddomain "github.com/smallbiznis/chargecore/internal/billingperiod/domain"
	"github.com/smallbiznis/chargecore/internal/config"
	feedomain "github.com/smallbiznis/chargecore/internal/fee/domain"
	"github.com/smallbiznis/chargecore/internal/observability/logger"
	"github.com/smallbiznis/chargecore/internal/observability/tracing"
	"github.com/smallbiznis/chargecore/internal/pricing/properties"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// previewRequest is the file read by the one-shot fee preview.
type previewRequest struct {
	Subscription previewSubscription              `json:"subscription"`
	Charge       properties.ChargeInput           `json:"charge"`
	Metric       aggregationdomain.BillableMetric `json:"metric"`
	Filters      map[string]string                `json:"filters,omitempty"`
	Reference    time.Time                        `json:"reference"`
	CurrentUsage bool                             `json:"current_usage"`
	// Events are recorded before pricing, so a preview can run against an empty database.
	Events []previewEvent `json:"events,omitempty"`
}

type previewSubscription struct {
	ID                 string          `json:"id"`
	SubscriptionAt     time.Time       `json:"subscription_at"`
	StartedAt          time.Time       `json:"started_at"`
	Interval           string          `json:"interval"`
	Timing             string          `json:"timing"`
	PayInAdvance       bool            `json:"pay_in_advance"`
	TerminatedAt       *time.Time      `json:"terminated_at"`
	Timezone           string          `json:"timezone"`
	BillChargesMonthly *bool           `json:"bill_charges_monthly"`
	PlanAmount         decimal.Decimal `json:"plan_amount"`
}

type previewEvent struct {
	TransactionID string         `json:"transaction_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Properties    map[string]any `json:"properties"`
}

func (s previewSubscription) context() billingperioddomain.SubscriptionBillingContext {
	return billingperioddomain.SubscriptionBillingContext{
		SubscriptionID:     s.ID,
		SubscriptionAt:     s.SubscriptionAt,
		StartedAt:          s.StartedAt,
		Interval:           billingperioddomain.BillingInterval(s.Interval),
		Timing:             billingperioddomain.BillingTiming(s.Timing),
		PayInAdvance:       s.PayInAdvance,
		TerminatedAt:       s.TerminatedAt,
		Timezone:           s.Timezone,
		BillChargesMonthly: s.BillChargesMonthly,
		PlanAmount:         s.PlanAmount,
	}
}

type PreviewParam struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     config.Config
	Log        *zap.Logger
	Fees       feedomain.Service
	Recorder   aggregationdomain.Recorder
}

// RunPreview prices the request at PREVIEW_PATH, prints the fee as JSON and stops the app.
func RunPreview(p PreviewParam) {
	log := p.Log.Named("preview")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			defer func() {
				if err := p.Shutdowner.Shutdown(); err != nil {
					log.Warn("shutdown failed", zap.Error(err))
				}
			}()
			if p.Config.PreviewPath == "" {
				log.Info("PREVIEW_PATH not set, nothing to price")
				return nil
			}
			return runPreview(ctx, p, os.Stdout)
		},
	})
}

func runPreview(ctx context.Context, p PreviewParam, out io.Writer) error {
	ctx, runID := tracing.EnsureCorrelationID(ctx)
	log := logger.WithContext(ctx, p.Log.Named("preview"))
	log.Info("pricing preview", zap.String("path", p.Config.PreviewPath), zap.String("run_id", runID))

	raw, err := os.ReadFile(p.Config.PreviewPath)
	if err != nil {
		return fmt.Errorf("read preview: %w", err)
	}
	var req previewRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode preview: %w", err)
	}

	charge, err := properties.ParseCharge(req.Charge)
	if err != nil {
		return fmt.Errorf("charge %s: %w", req.Charge.ID, err)
	}
	sub := req.Subscription.context()

	if len(req.Events) > 0 {
		events := lo.Map(req.Events, func(e previewEvent, _ int) *aggregationdomain.UsageEvent {
			return &aggregationdomain.UsageEvent{
				SubscriptionID: sub.SubscriptionID,
				MetricCode:     req.Metric.Code,
				TransactionID:  e.TransactionID,
				Timestamp:      e.Timestamp,
				Properties:     datatypes.JSONMap(e.Properties),
			}
		})
		if err := p.Recorder.Record(ctx, events...); err != nil {
			return fmt.Errorf("record events: %w", err)
		}
	}

	result, err := p.Fees.ComputePeriodFee(ctx, feedomain.PeriodFeeRequest{
		Subscription: sub,
		Charge:       charge,
		Metric:       req.Metric,
		Filters:      req.Filters,
		Reference:    req.Reference,
		CurrentUsage: req.CurrentUsage,
	})
	if err != nil {
		return err
	}
	if result.Boundary == nil {
		log.Info("subscription has no billable period yet", zap.String("subscription_id", sub.SubscriptionID))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
