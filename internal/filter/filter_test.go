package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestPassesEmptyFilters(t *testing.T) {
	p := payload(t, `{"anything":1}`)
	assert.True(t, Passes(nil, p))
	assert.True(t, Passes(map[string]any{}, p))
}

func TestPassesScalarEquality(t *testing.T) {
	p := payload(t, `{"status":"active","amount":100,"flag":true}`)

	assert.True(t, Passes(map[string]any{"status": "active"}, p))
	assert.True(t, Passes(map[string]any{"flag": true}, p))
	assert.False(t, Passes(map[string]any{"status": "inactive"}, p))

	// filters configured with int literals match JSON float64 values
	assert.True(t, Passes(map[string]any{"amount": 100}, p))
	assert.True(t, Passes(map[string]any{"amount": float64(100)}, p))
	assert.False(t, Passes(map[string]any{"amount": 50}, p))
}

func TestPassesDottedPath(t *testing.T) {
	p := payload(t, `{"order":{"customer":{"tier":"gold"},"total":250}}`)

	assert.True(t, Passes(map[string]any{"order.customer.tier": "gold"}, p))
	assert.True(t, Passes(map[string]any{"order.total": 250}, p))
	assert.False(t, Passes(map[string]any{"order.customer.tier": "silver"}, p))

	// missing path never passes
	assert.False(t, Passes(map[string]any{"order.missing": "x"}, p))
	// path descending through a scalar never passes
	assert.False(t, Passes(map[string]any{"order.total.cents": 0}, p))
}

func TestPassesMembership(t *testing.T) {
	p := payload(t, `{"currency":"EUR","amount":5}`)

	assert.True(t, Passes(map[string]any{"currency": []any{"USD", "EUR"}}, p))
	assert.True(t, Passes(map[string]any{"currency": []string{"USD", "EUR"}}, p))
	assert.False(t, Passes(map[string]any{"currency": []any{"USD", "GBP"}}, p))
	assert.True(t, Passes(map[string]any{"amount": []any{1, 5, 10}}, p))
	assert.False(t, Passes(map[string]any{"amount": []any{}}, p))
}

func TestPassesConjunction(t *testing.T) {
	p := payload(t, `{"status":"active","amount":100}`)

	assert.True(t, Passes(map[string]any{"status": "active", "amount": 100}, p))
	// every entry must hold
	assert.False(t, Passes(map[string]any{"status": "active", "amount": 50}, p))
}

func TestPassesIsPure(t *testing.T) {
	filters := map[string]any{"a.b": 1}
	p := payload(t, `{"a":{"b":1}}`)

	assert.True(t, Passes(filters, p))
	assert.True(t, Passes(filters, p))
	assert.Equal(t, map[string]any{"a.b": 1}, filters)
	assert.Equal(t, payload(t, `{"a":{"b":1}}`), p)
}
