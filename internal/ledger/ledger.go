// Package ledger owns delivery outcome writeback: it records attempt results
// on the webhook_deliveries row and applies the failure-driven lifecycle to
// the owning subscription.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Ledger struct {
	db         *sqlx.DB
	subs       repository.SubscriptionsRepository
	deliveries repository.DeliveriesRepository
	log        *zap.Logger
}

func New(db *sqlx.DB, subs repository.SubscriptionsRepository, deliveries repository.DeliveriesRepository, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{db: db, subs: subs, deliveries: deliveries, log: log}
}

var _ dispatcher.Outcomes = (*Ledger)(nil)

// EnsurePending returns the single delivery row for (subscription, event),
// inserting it when this is the first time the pair meets. The unique key on
// the pair makes concurrent inserts collapse into one row.
func (l *Ledger) EnsurePending(ctx context.Context, sub model.WebhookSubscription, evt model.WebhookEvent) (*model.WebhookDelivery, error) {
	existing, err := l.deliveries.GetBySubscriptionEvent(ctx, sub.ID, evt.ID)
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	d := model.WebhookDelivery{
		ID:             util.New(),
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		TenantID:       evt.TenantID,
		Status:         model.DeliveryPending,
	}
	if err := l.deliveries.EnsurePending(ctx, d); err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}

	// Re-read: a concurrent inserter may have won the unique key.
	out, err := l.deliveries.GetBySubscriptionEvent(ctx, sub.ID, evt.ID)
	if err != nil {
		return nil, fmt.Errorf("reread delivery: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("delivery row missing after insert: %s/%s", sub.ID, evt.ID)
	}
	return out, nil
}

// RecordSuccess finalizes the delivery and resets the subscription's failure
// streak in one transaction. The subscription's status is left alone: a
// success never un-pauses or un-fails a subscription on its own.
func (l *Ledger) RecordSuccess(ctx context.Context, d *model.WebhookDelivery, res dispatcher.Result) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := l.deliveries.MarkSuccess(ctx, tx, d.ID, d.Attempts, res.StatusCode, res.Body); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	if err := l.subs.ResetFailures(ctx, tx, d.SubscriptionID); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	d.Status = model.DeliverySuccess
	now := time.Now()
	d.DeliveredAt = &now
	return nil
}

// RecordFailure increments the subscription's failure count under a row lock
// and either schedules the next retry or, once the count exceeds max_retries,
// marks the subscription failed and the delivery terminal. Holding the lock
// for the whole decision keeps concurrent attempts from losing updates.
func (l *Ledger) RecordFailure(ctx context.Context, d *model.WebhookDelivery, res dispatcher.Result) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	count, status, cfg, err := l.subs.GetForUpdate(ctx, tx, d.SubscriptionID)
	if err != nil {
		return fmt.Errorf("lock subscription: %w", err)
	}
	count++

	code, body, errMsg := resultColumns(res)

	if count <= cfg.MaxRetries {
		retryAt := time.Now().Add(NextRetryDelay(cfg, count))
		if err := l.deliveries.MarkRetrying(ctx, tx, d.ID, d.Attempts, code, body, errMsg, retryAt); err != nil {
			return fmt.Errorf("mark retrying: %w", err)
		}
		if err := l.subs.SetFailureState(ctx, tx, d.SubscriptionID, count, status); err != nil {
			return fmt.Errorf("bump failure count: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		d.Status = model.DeliveryRetrying
		d.NextRetryAt = &retryAt
		return nil
	}

	// Retries exhausted: the subscription drops out of matching until an
	// administrator reactivates it.
	if err := l.deliveries.MarkFailed(ctx, tx, d.ID, d.Attempts, code, body, errMsg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if err := l.subs.SetFailureState(ctx, tx, d.SubscriptionID, count, model.SubscriptionFailed); err != nil {
		return fmt.Errorf("fail subscription: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	l.log.Warn("subscription auto-disabled after retry exhaustion",
		zap.String("subscription_id", d.SubscriptionID),
		zap.Int("failure_count", count),
		zap.Int("max_retries", cfg.MaxRetries))

	d.Status = model.DeliveryFailed
	d.NextRetryAt = nil
	return nil
}

func resultColumns(res dispatcher.Result) (code *int, body, errMsg *string) {
	if res.StatusCode != 0 {
		c := res.StatusCode
		code = &c
	}
	if res.Body != "" {
		b := res.Body
		body = &b
	}
	if res.Err != "" {
		e := res.Err
		errMsg = &e
	}
	return code, body, errMsg
}
