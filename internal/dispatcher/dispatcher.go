// Package dispatcher fans an emitted event out to its matched subscriptions
// and drives each delivery attempt through the ledger's outcome writeback.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/hooklinehq/hookline/internal/filter"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/model"
	"go.uber.org/zap"
)

// Resolver yields the candidate subscriptions for an event. Implemented by
// matcher.Matcher.
type Resolver interface {
	Resolve(ctx context.Context, evt model.WebhookEvent) ([]model.WebhookSubscription, error)
}

// Outcomes records attempt results and owns the retry state machine.
// Implemented by ledger.Ledger.
type Outcomes interface {
	// EnsurePending returns the delivery row for (subscription, event),
	// creating it in the pending state when missing.
	EnsurePending(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) (*model.WebhookDelivery, error)
	RecordSuccess(ctx context.Context, d *model.WebhookDelivery, res Result) error
	RecordFailure(ctx context.Context, d *model.WebhookDelivery, res Result) error
}

type Dispatcher struct {
	resolver Resolver
	outcomes Outcomes
	sender   Sender
	timeout  time.Duration
	log      *zap.Logger
}

func New(resolver Resolver, outcomes Outcomes, sender Sender, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		resolver: resolver,
		outcomes: outcomes,
		sender:   sender,
		timeout:  timeout,
		log:      log,
	}
}

// DispatchEvent resolves matching subscriptions, applies their payload
// filters, and delivers to each on its own goroutine. One endpoint timing out
// or failing never delays or cancels delivery to the others. Errors are
// contained and logged; nothing propagates back to the event producer.
func (dp *Dispatcher) DispatchEvent(ctx context.Context, evt model.WebhookEvent) {
	subs, err := dp.resolver.Resolve(ctx, evt)
	if err != nil {
		dp.log.Error("resolve subscriptions failed",
			zap.String("event_id", evt.ID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload := evt.PayloadMap()

	var wg sync.WaitGroup
	for _, sub := range subs {
		if !filter.Passes(sub.Filters, payload) {
			continue
		}
		wg.Add(1)
		go func(sub model.WebhookSubscription) {
			defer wg.Done()
			dp.deliver(ctx, sub, evt)
		}(sub)
	}
	wg.Wait()
}

func (dp *Dispatcher) deliver(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) {
	d, err := dp.outcomes.EnsurePending(ctx, sub, evt)
	if err != nil {
		dp.log.Error("ensure delivery failed",
			zap.String("subscription_id", sub.ID), zap.String("event_id", evt.ID), zap.Error(err))
		return
	}
	if d.Status.Terminal() {
		return
	}
	dp.Attempt(ctx, sub, evt, d)
}

// Attempt performs one timed delivery attempt and records its outcome. The
// retry worker calls this directly when a delivery comes due again.
func (dp *Dispatcher) Attempt(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent, d *model.WebhookDelivery) {
	actx, cancel := context.WithTimeout(ctx, dp.timeout)
	defer cancel()

	res := dp.sender.Send(actx, sub, evt)
	d.Attempts++

	metrics.DeliveryDuration.Observe(res.Duration.Seconds())

	if res.Success() {
		metrics.DeliveriesTotal.WithLabelValues("success").Inc()
		if err := dp.outcomes.RecordSuccess(ctx, d, res); err != nil {
			dp.log.Error("record success failed",
				zap.String("delivery_id", d.ID), zap.Error(err))
		}
		return
	}

	dp.log.Warn("delivery attempt failed",
		zap.String("delivery_id", d.ID),
		zap.String("subscription_id", sub.ID),
		zap.Int("status", res.StatusCode),
		zap.String("error", res.Err),
		zap.Int("attempts", d.Attempts))

	if err := dp.outcomes.RecordFailure(ctx, d, res); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		dp.log.Error("record failure failed",
			zap.String("delivery_id", d.ID), zap.Error(err))
		return
	}

	switch d.Status {
	case model.DeliveryRetrying:
		metrics.DeliveriesTotal.WithLabelValues("retrying").Inc()
	default:
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
	}
}
