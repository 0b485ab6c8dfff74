package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "active"
	SubscriptionPaused SubscriptionStatus = "paused"
	SubscriptionFailed SubscriptionStatus = "failed"
)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) Valid() bool {
	return s == SubscriptionActive || s == SubscriptionPaused || s == SubscriptionFailed
}

// RetryConfig controls the failure-driven backoff lifecycle of a subscription.
// Stored as a JSON column on webhook_subscriptions.
type RetryConfig struct {
	MaxRetries         int  `json:"max_retries"`
	RetryDelay         int  `json:"retry_delay"` // base delay, seconds
	ExponentialBackoff bool `json:"exponential_backoff"`
}

func (c RetryConfig) Value() (driver.Value, error) { return marshalJSONColumn(c) }
func (c *RetryConfig) Scan(src any) error          { return scanJSON(src, c) }

// DefaultRetryConfig matches what the API applies when a subscription is
// created without an explicit retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, RetryDelay: 60, ExponentialBackoff: true}
}

// ValidPattern reports whether p is an acceptable event_types entry: either a
// plain event type or a first-segment wildcard like "order.*". A wildcard may
// only appear as the sole trailing segment.
func ValidPattern(p string) bool {
	if ValidEventType(p) {
		return true
	}
	base, ok := strings.CutSuffix(p, ".*")
	if !ok {
		return false
	}
	return base != "" && !strings.Contains(base, ".") && !strings.Contains(base, "*")
}

// WebhookSubscription is a tenant-configured delivery target. The secret is
// generated once at create time and never re-exposed through the API.
type WebhookSubscription struct {
	ID           string             `db:"id" json:"id"`
	AppID        string             `db:"app_id" json:"app_id"`
	TenantID     string             `db:"tenant_id" json:"tenant_id"`
	Name         string             `db:"name" json:"name"`
	EventTypes   StringList         `db:"event_types" json:"event_types"`
	EndpointURL  string             `db:"endpoint_url" json:"endpoint_url"`
	Secret       string             `db:"secret" json:"secret,omitempty"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	RetryConfig  RetryConfig        `db:"retry_config" json:"retry_config"`
	Filters      JSONMap            `db:"filters" json:"filters,omitempty"`
	FailureCount int                `db:"failure_count" json:"failure_count"`
	LastTriggered *time.Time        `db:"last_triggered" json:"last_triggered,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// Masked returns a copy safe for listing surfaces: the signing secret is
// blanked out.
func (s WebhookSubscription) Masked() WebhookSubscription {
	s.Secret = ""
	return s
}
