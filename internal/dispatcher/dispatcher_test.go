package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	subs []model.WebhookSubscription
}

func (f *fakeResolver) Resolve(context.Context, model.WebhookEvent) ([]model.WebhookSubscription, error) {
	return f.subs, nil
}

// fakeOutcomes records attempt results in memory, mimicking the ledger's
// status transitions.
type fakeOutcomes struct {
	mu        sync.Mutex
	pending   map[string]model.DeliveryStatus // initial status per subscription id
	successes []string
	failures  []string
}

func newFakeOutcomes() *fakeOutcomes {
	return &fakeOutcomes{pending: map[string]model.DeliveryStatus{}}
}

func (f *fakeOutcomes) EnsurePending(_ context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) (*model.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.pending[sub.ID]
	if !ok {
		st = model.DeliveryPending
	}
	return &model.WebhookDelivery{
		ID:             "d-" + sub.ID,
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		Status:         st,
	}, nil
}

func (f *fakeOutcomes) RecordSuccess(_ context.Context, d *model.WebhookDelivery, _ Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.Status = model.DeliverySuccess
	f.successes = append(f.successes, d.SubscriptionID)
	return nil
}

func (f *fakeOutcomes) RecordFailure(_ context.Context, d *model.WebhookDelivery, _ Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.Status = model.DeliveryRetrying
	f.failures = append(f.failures, d.SubscriptionID)
	return nil
}

func testEvent() model.WebhookEvent {
	return model.WebhookEvent{
		ID:        "evt1",
		EventType: "order.created",
		SourceApp: "shop",
		TenantID:  "t1",
		Payload:   json.RawMessage(`{"amount":100,"currency":"USD"}`),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSendSignsAndSetsHeaders(t *testing.T) {
	secret := signature.GenerateSecret()

	var gotHeader http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub := model.WebhookSubscription{ID: "s1", EndpointURL: srv.URL, Secret: secret}
	res := NewHTTPSender(2 * time.Second).Send(context.Background(), sub, testEvent())

	require.True(t, res.Success())
	assert.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "Hookline-Webhooks/1.0", gotHeader.Get("User-Agent"))
	assert.Equal(t, "order.created", gotHeader.Get("X-Hookline-Event"))
	assert.NotEmpty(t, gotHeader.Get("X-Hookline-Delivery"))

	// the signature verifies over the raw request body
	sig := gotHeader.Get("X-Hookline-Signature")
	assert.True(t, signature.Verify(gotBody, secret, sig))

	var body map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, "evt1", body["event_id"])
	assert.Equal(t, "order.created", body["event_type"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["timestamp"])
	assert.Equal(t, "shop", body["source_app"])
	assert.Equal(t, float64(100), body["data"].(map[string]any)["amount"])
}

func TestSendNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broke"))
	}))
	defer srv.Close()

	sub := model.WebhookSubscription{ID: "s1", EndpointURL: srv.URL, Secret: "whsec_x"}
	res := NewHTTPSender(2 * time.Second).Send(context.Background(), sub, testEvent())

	assert.False(t, res.Success())
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "upstream broke", res.Body)
	assert.Empty(t, res.Err)
}

func TestSendResponseBodyCapped(t *testing.T) {
	big := make([]byte, 8192)
	for i := range big {
		big[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer srv.Close()

	sub := model.WebhookSubscription{ID: "s1", EndpointURL: srv.URL, Secret: "whsec_x"}
	res := NewHTTPSender(2 * time.Second).Send(context.Background(), sub, testEvent())

	assert.Len(t, res.Body, maxResponseBody)
}

func TestDispatchEventRecordsOutcomes(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer badSrv.Close()

	resolver := &fakeResolver{subs: []model.WebhookSubscription{
		{ID: "ok", EndpointURL: okSrv.URL, Secret: "whsec_a"},
		{ID: "bad", EndpointURL: badSrv.URL, Secret: "whsec_b"},
	}}
	outcomes := newFakeOutcomes()

	dp := New(resolver, outcomes, NewHTTPSender(2*time.Second), 2*time.Second, nil)
	dp.DispatchEvent(context.Background(), testEvent())

	assert.Equal(t, []string{"ok"}, outcomes.successes)
	assert.Equal(t, []string{"bad"}, outcomes.failures)
}

func TestDispatchEventAppliesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resolver := &fakeResolver{subs: []model.WebhookSubscription{
		{ID: "match", EndpointURL: srv.URL, Secret: "whsec_a",
			Filters: model.JSONMap{"currency": "USD"}},
		{ID: "nomatch", EndpointURL: srv.URL, Secret: "whsec_b",
			Filters: model.JSONMap{"amount": 50}},
	}}
	outcomes := newFakeOutcomes()

	dp := New(resolver, outcomes, NewHTTPSender(2*time.Second), 2*time.Second, nil)
	dp.DispatchEvent(context.Background(), testEvent())

	// the failing filter is silent: no delivery row, no attempt
	assert.Equal(t, []string{"match"}, outcomes.successes)
	assert.Empty(t, outcomes.failures)
}

func TestDispatchEventSkipsTerminalDeliveries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resolver := &fakeResolver{subs: []model.WebhookSubscription{
		{ID: "done", EndpointURL: srv.URL, Secret: "whsec_a"},
	}}
	outcomes := newFakeOutcomes()
	outcomes.pending["done"] = model.DeliverySuccess

	dp := New(resolver, outcomes, NewHTTPSender(2*time.Second), 2*time.Second, nil)
	dp.DispatchEvent(context.Background(), testEvent())

	assert.Zero(t, hits)
	assert.Empty(t, outcomes.successes)
	assert.Empty(t, outcomes.failures)
}

func TestDispatchEventIsolatesSlowEndpoints(t *testing.T) {
	release := make(chan struct{})
	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		slowSrv.Close()
	}()
	fastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fastSrv.Close()

	resolver := &fakeResolver{subs: []model.WebhookSubscription{
		{ID: "slow", EndpointURL: slowSrv.URL, Secret: "whsec_a"},
		{ID: "fast", EndpointURL: fastSrv.URL, Secret: "whsec_b"},
	}}
	outcomes := newFakeOutcomes()

	// short timeout so the hung endpoint fails quickly instead of stalling
	dp := New(resolver, outcomes, NewHTTPSender(300*time.Millisecond), 300*time.Millisecond, nil)

	start := time.Now()
	dp.DispatchEvent(context.Background(), testEvent())
	elapsed := time.Since(start)

	assert.Equal(t, []string{"fast"}, outcomes.successes)
	assert.Equal(t, []string{"slow"}, outcomes.failures)
	// the slow endpoint costs one timeout, not a serial sum
	assert.Less(t, elapsed, 2*time.Second)
}
