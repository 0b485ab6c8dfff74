package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEventType(t *testing.T) {
	valid := []string{
		"order.created",
		"user.profile.updated",
		"payment_intent.succeeded",
		"a.b",
		"invoice-v2.paid",
	}
	for _, s := range valid {
		assert.True(t, ValidEventType(s), s)
	}

	invalid := []string{
		"",
		"order",
		"order.",
		".created",
		"Order.Created",
		"order created",
		"order.*",
		"order..created",
	}
	for _, s := range invalid {
		assert.False(t, ValidEventType(s), s)
	}
}

func TestWildcardOf(t *testing.T) {
	assert.Equal(t, "order.*", WildcardOf("order.created"))
	assert.Equal(t, "user.*", WildcardOf("user.deleted"))

	// wildcards cover exactly one level: deeper types have none
	assert.Equal(t, "", WildcardOf("order.created.detail"))
	assert.Equal(t, "", WildcardOf("noseparator"))
	assert.Equal(t, "", WildcardOf("order."))
}

func TestValidPattern(t *testing.T) {
	assert.True(t, ValidPattern("order.created"))
	assert.True(t, ValidPattern("order.*"))
	assert.True(t, ValidPattern("payment_intent.*"))

	assert.False(t, ValidPattern("*"))
	assert.False(t, ValidPattern("*.created"))
	assert.False(t, ValidPattern("order.created.*"))
	assert.False(t, ValidPattern("or*der.*"))
	assert.False(t, ValidPattern(".*"))
	assert.False(t, ValidPattern(""))
}

func TestPayloadMap(t *testing.T) {
	e := WebhookEvent{Payload: json.RawMessage(`{"order":{"total":99.5},"ok":true}`)}
	m := e.PayloadMap()
	assert.Equal(t, true, m["ok"])
	assert.Equal(t, 99.5, m["order"].(map[string]any)["total"])

	// missing and non-object payloads degrade to an empty map
	assert.Empty(t, WebhookEvent{}.PayloadMap())
	assert.Empty(t, WebhookEvent{Payload: json.RawMessage(`[1,2]`)}.PayloadMap())
	assert.Empty(t, WebhookEvent{Payload: json.RawMessage(`null`)}.PayloadMap())
}
