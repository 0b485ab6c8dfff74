package model

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// eventTypeRe enforces the "namespace.verb" convention: lowercase dot-separated
// segments. Wildcard resolution keys off the first segment, so the shape matters.
var eventTypeRe = regexp.MustCompile(`^[a-z0-9_-]+(\.[a-z0-9_-]+)+$`)

// ValidEventType reports whether s is a well-formed dot-namespaced event type.
func ValidEventType(s string) bool {
	return eventTypeRe.MatchString(s)
}

// WildcardOf derives the single-segment wildcard pattern that would match the
// given event type: "order.created" -> "order.*". Matching is exactly one level
// deep, so only two-segment types have a covering wildcard;
// "order.created.detail" yields "".
func WildcardOf(eventType string) string {
	first, rest, ok := strings.Cut(eventType, ".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return ""
	}
	return first + ".*"
}

// WebhookEvent is the DB entity persisted in the append-only webhook_events
// table. Rows are created once by a producer and never mutated.
type WebhookEvent struct {
	ID        string          `db:"id" json:"id"`
	EventType string          `db:"event_type" json:"event_type"`
	SourceApp string          `db:"source_app" json:"source_app"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Metadata  JSONMap         `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// PayloadMap unmarshals the payload document for filter evaluation.
// A missing or non-object payload yields an empty map.
func (e WebhookEvent) PayloadMap() map[string]any {
	if len(e.Payload) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(e.Payload, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// Envelope is the payload published to Kafka (via Debezium outbox SMT) when an
// event is emitted. The dispatch worker consumes it without re-reading the row.
type Envelope struct {
	ID       string       `json:"id"`
	TenantID string       `json:"tenant_id"`
	Event    WebhookEvent `json:"event"`
}
