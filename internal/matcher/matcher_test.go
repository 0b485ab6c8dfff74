package matcher

import (
	"context"
	"testing"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource maps "tenant|pattern" to subscriptions.
type fakeSource struct {
	byPattern map[string][]model.WebhookSubscription
	calls     []string
}

func (f *fakeSource) ListActiveByPattern(_ context.Context, tenantID, pattern string) ([]model.WebhookSubscription, error) {
	key := tenantID + "|" + pattern
	f.calls = append(f.calls, key)
	return f.byPattern[key], nil
}

func sub(id string, patterns ...string) model.WebhookSubscription {
	return model.WebhookSubscription{
		ID:         id,
		EventTypes: model.StringList(patterns),
		Status:     model.SubscriptionActive,
	}
}

func TestResolveExactAndWildcard(t *testing.T) {
	src := &fakeSource{byPattern: map[string][]model.WebhookSubscription{
		"t1|order.created": {sub("exact", "order.created")},
		"t1|order.*":       {sub("wild", "order.*")},
	}}
	m := New(src)

	subs, err := m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t1", EventType: "order.created",
	})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "exact", subs[0].ID)
	assert.Equal(t, "wild", subs[1].ID)
	assert.Equal(t, []string{"t1|order.created", "t1|order.*"}, src.calls)
}

func TestResolveDeduplicatesById(t *testing.T) {
	both := sub("dup", "order.created", "order.*")
	src := &fakeSource{byPattern: map[string][]model.WebhookSubscription{
		"t1|order.created": {both},
		"t1|order.*":       {both},
	}}
	m := New(src)

	subs, err := m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t1", EventType: "order.created",
	})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestResolveWildcardIsOneLevelDeep(t *testing.T) {
	// "order.*" covers "order.created" but not the deeper
	// "order.created.detail": events below two segments have no covering
	// wildcard, so only the exact lookup runs for them.
	src := &fakeSource{byPattern: map[string][]model.WebhookSubscription{
		"t1|order.*": {sub("wild", "order.*")},
	}}
	m := New(src)

	subs, err := m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t1", EventType: "order.created.detail",
	})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, []string{"t1|order.created.detail"}, src.calls)

	subs, err = m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t1", EventType: "order.created",
	})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "wild", subs[0].ID)
}

func TestResolveDifferentFirstSegmentNeverMatches(t *testing.T) {
	// "order.*" must not cover "orders.created"; the lookup key for that
	// event is "orders.*".
	src := &fakeSource{byPattern: map[string][]model.WebhookSubscription{
		"t1|order.*": {sub("wild", "order.*")},
	}}
	m := New(src)

	subs, err := m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t1", EventType: "orders.created",
	})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestResolveTenantScoped(t *testing.T) {
	src := &fakeSource{byPattern: map[string][]model.WebhookSubscription{
		"t1|order.created": {sub("t1sub", "order.created")},
	}}
	m := New(src)

	subs, err := m.Resolve(context.Background(), model.WebhookEvent{
		TenantID: "t2", EventType: "order.created",
	})
	require.NoError(t, err)
	assert.Empty(t, subs)
}
