package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	"go.uber.org/zap"
)

// RetryPoller drains deliveries whose next_retry_at has come due and hands
// them back to the dispatcher. It re-checks delivery and subscription state
// right before each attempt so a success that landed in the meantime, or an
// administratively paused subscription, turns the retry into a no-op.
type RetryPoller struct {
	Deliveries repository.DeliveriesRepository
	Subs       repository.SubscriptionsRepository
	Events     repository.EventsRepository
	Dispatcher *dispatcher.Dispatcher

	Interval  time.Duration
	BatchSize int
	Workers   int
	Log       *zap.Logger
}

func NewRetryPoller(
	deliveries repository.DeliveriesRepository,
	subs repository.SubscriptionsRepository,
	events repository.EventsRepository,
	disp *dispatcher.Dispatcher,
	log *zap.Logger,
) *RetryPoller {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryPoller{
		Deliveries: deliveries,
		Subs:       subs,
		Events:     events,
		Dispatcher: disp,
		Interval:   5 * time.Second,
		BatchSize:  100,
		Workers:    16,
		Log:        log,
	}
}

// Run polls until ctx is cancelled.
func (p *RetryPoller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 100
	}
	if p.Workers <= 0 {
		p.Workers = 16
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.processOnce(ctx)
		}
	}
}

func (p *RetryPoller) processOnce(ctx context.Context) {
	due, err := p.Deliveries.ListDue(ctx, p.BatchSize)
	if err != nil {
		p.Log.Error("list due deliveries failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, p.Workers)
	var wg sync.WaitGroup
	for _, d := range due {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(d model.WebhookDelivery) {
			defer wg.Done()
			defer func() { <-sem }()
			p.redeliver(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (p *RetryPoller) redeliver(ctx context.Context, stale model.WebhookDelivery) {
	// Re-read: the row may have reached a terminal state since the batch was
	// selected.
	d, err := p.Deliveries.GetByID(ctx, stale.ID)
	if err != nil {
		p.Log.Error("reread delivery failed", zap.String("delivery_id", stale.ID), zap.Error(err))
		return
	}
	if d == nil || d.Status != model.DeliveryRetrying {
		return
	}

	sub, err := p.Subs.GetByID(ctx, d.TenantID, d.SubscriptionID)
	if err != nil {
		p.Log.Error("load subscription failed", zap.String("delivery_id", d.ID), zap.Error(err))
		return
	}
	if sub == nil || sub.Status != model.SubscriptionActive {
		return
	}

	evt, err := p.Events.GetByID(ctx, d.EventID)
	if err != nil || evt == nil {
		p.Log.Error("load event failed",
			zap.String("delivery_id", d.ID), zap.String("event_id", d.EventID), zap.Error(err))
		return
	}

	p.Dispatcher.Attempt(ctx, *sub, *evt, d)
}
