package model

import "time"

type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySuccess  DeliveryStatus = "success"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryRetrying DeliveryStatus = "retrying"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliverySuccess, DeliveryFailed, DeliveryRetrying:
		return true
	}
	return false
}

// Terminal reports whether the delivery has reached a final state.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySuccess || s == DeliveryFailed
}

// WebhookDelivery tracks the full attempt sequence for delivering one event to
// one subscription. There is exactly one row per (subscription_id, event_id)
// pair; retries update it in place rather than appending per attempt.
type WebhookDelivery struct {
	ID             string         `db:"id" json:"id"`
	SubscriptionID string         `db:"subscription_id" json:"subscription_id"`
	EventID        string         `db:"event_id" json:"event_id"`
	TenantID       string         `db:"tenant_id" json:"tenant_id"`
	Status         DeliveryStatus `db:"status" json:"status"`
	Attempts       int            `db:"attempts" json:"attempts"`
	ResponseCode   *int           `db:"response_code" json:"response_code,omitempty"`
	ResponseBody   *string        `db:"response_body" json:"response_body,omitempty"`
	ErrorMessage   *string        `db:"error_message" json:"error_message,omitempty"`
	NextRetryAt    *time.Time     `db:"next_retry_at" json:"next_retry_at,omitempty"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
