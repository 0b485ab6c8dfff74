// Package matcher resolves an event to the set of active subscriptions whose
// event_types cover it, either verbatim or through a first-segment wildcard.
package matcher

import (
	"context"
	"fmt"

	"github.com/hooklinehq/hookline/internal/model"
)

// SubscriptionSource is the registry lookup the matcher needs. Implemented by
// repository.SubscriptionsRepository.
type SubscriptionSource interface {
	// ListActiveByPattern returns active subscriptions for the tenant whose
	// event_types set contains the given pattern string verbatim.
	ListActiveByPattern(ctx context.Context, tenantID, pattern string) ([]model.WebhookSubscription, error)
}

type Matcher struct {
	subs SubscriptionSource
}

func New(subs SubscriptionSource) *Matcher {
	return &Matcher{subs: subs}
}

// Resolve returns the candidate subscriptions for an event: the union (by id)
// of exact event_type matches and literal wildcard matches. Wildcards are one
// segment deep: "order.*" covers "order.created" but not "order.created.detail",
// and never "orders.created".
func (m *Matcher) Resolve(ctx context.Context, evt model.WebhookEvent) ([]model.WebhookSubscription, error) {
	exact, err := m.subs.ListActiveByPattern(ctx, evt.TenantID, evt.EventType)
	if err != nil {
		return nil, fmt.Errorf("match exact: %w", err)
	}

	var wildcard []model.WebhookSubscription
	if p := model.WildcardOf(evt.EventType); p != "" {
		wildcard, err = m.subs.ListActiveByPattern(ctx, evt.TenantID, p)
		if err != nil {
			return nil, fmt.Errorf("match wildcard: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(exact)+len(wildcard))
	out := make([]model.WebhookSubscription, 0, len(exact)+len(wildcard))
	for _, s := range append(exact, wildcard...) {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
