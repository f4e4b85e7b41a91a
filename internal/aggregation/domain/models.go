// Package domain describes usage events and the aggregation port pricing reads from.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// UsageEvent stores one metered event of a subscription.
type UsageEvent struct {
	ID             snowflake.ID      `json:"id" gorm:"primaryKey"`
	SubscriptionID string            `json:"subscription_id" gorm:"type:text;not null;index:idx_usage_events_window"`
	MetricCode     string            `json:"code" gorm:"column:metric_code;type:text;not null;index:idx_usage_events_window"`
	TransactionID  string            `json:"transaction_id" gorm:"type:text;not null;uniqueIndex"`
	Timestamp      time.Time         `json:"timestamp" gorm:"not null;index:idx_usage_events_window"`
	Properties     datatypes.JSONMap `json:"properties,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null"`
}

func (UsageEvent) TableName() string { return "usage_events" }

// AggregationType selects how event values fold into units.
type AggregationType string

const (
	AggregationCount       AggregationType = "count"
	AggregationSum         AggregationType = "sum"
	AggregationMax         AggregationType = "max"
	AggregationUniqueCount AggregationType = "unique_count"
)

// BillableMetric names the events of a charge and how they aggregate.
type BillableMetric struct {
	Code        string          `json:"code"`
	Aggregation AggregationType `json:"aggregation_type"`
	// FieldName is the event property read by sum, max and unique_count.
	FieldName string `json:"field_name"`
}

// Request asks for the usage of one metric of one subscription over a window.
type Request struct {
	SubscriptionID string
	Metric         BillableMetric
	From           time.Time
	To             time.Time
	// Filters keep only events whose property equals the given value.
	Filters   map[string]string
	GroupedBy []string
	// FreeUnitsPerEvents sums the value of the first N events into FreeUnitsConsumed.
	FreeUnitsPerEvents *int64
	// Prorated weights every event by the share of the window left after it.
	Prorated bool
	// ExcludeTransactionID leaves one event out, e.g. to read usage before it.
	ExcludeTransactionID string
}
