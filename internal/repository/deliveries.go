package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveriesRepository defines persistence for the webhook_deliveries table:
// one row per (subscription_id, event_id) pair, updated in place across
// retries.
type DeliveriesRepository interface {
	// EnsurePending inserts the pending row for a (subscription, event) pair.
	// A duplicate insert is a no-op so redelivery of the same event never
	// spawns a second row.
	EnsurePending(ctx context.Context, d model.WebhookDelivery) error
	GetBySubscriptionEvent(ctx context.Context, subscriptionID, eventID string) (*model.WebhookDelivery, error)
	GetByID(ctx context.Context, id string) (*model.WebhookDelivery, error)

	MarkSuccess(ctx context.Context, tx *sqlx.Tx, id string, attempts, responseCode int, responseBody string) error
	MarkRetrying(ctx context.Context, tx *sqlx.Tx, id string, attempts int, responseCode *int, responseBody, errorMessage *string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, tx *sqlx.Tx, id string, attempts int, responseCode *int, responseBody, errorMessage *string) error

	// ListDue selects deliveries awaiting redelivery: status=retrying with
	// next_retry_at in the past.
	ListDue(ctx context.Context, limit int) ([]model.WebhookDelivery, error)
	List(ctx context.Context, tenantID, subscriptionID string, status model.DeliveryStatus, limit, offset int) ([]model.WebhookDelivery, error)
}

type DeliveriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewDeliveriesRepository(db *sqlx.DB) *DeliveriesRepositoryImpl {
	return &DeliveriesRepositoryImpl{db: db}
}

var _ DeliveriesRepository = (*DeliveriesRepositoryImpl)(nil)

const deliveryCols = `
	id, subscription_id, event_id, tenant_id, status, attempts, response_code,
	response_body, error_message, next_retry_at, delivered_at, created_at, updated_at
`

func (r *DeliveriesRepositoryImpl) EnsurePending(ctx context.Context, d model.WebhookDelivery) error {
	const q = `
		INSERT INTO webhook_deliveries
		    (id, subscription_id, event_id, tenant_id, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE id = id
	`
	_, err := r.db.ExecContext(ctx, q, d.ID, d.SubscriptionID, d.EventID, d.TenantID)
	return err
}

func (r *DeliveriesRepositoryImpl) GetBySubscriptionEvent(ctx context.Context, subscriptionID, eventID string) (*model.WebhookDelivery, error) {
	q := `SELECT ` + deliveryCols + `
		FROM webhook_deliveries
		WHERE subscription_id = ? AND event_id = ?`
	return r.getOne(ctx, q, subscriptionID, eventID)
}

func (r *DeliveriesRepositoryImpl) GetByID(ctx context.Context, id string) (*model.WebhookDelivery, error) {
	q := `SELECT ` + deliveryCols + ` FROM webhook_deliveries WHERE id = ?`
	return r.getOne(ctx, q, id)
}

func (r *DeliveriesRepositoryImpl) getOne(ctx context.Context, q string, args ...any) (*model.WebhookDelivery, error) {
	var d model.WebhookDelivery
	if err := r.db.GetContext(ctx, &d, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// MarkSuccess is final: the row keeps the last response and never leaves the
// success state. The guard on status makes a late success racing a scheduled
// retry idempotent.
func (r *DeliveriesRepositoryImpl) MarkSuccess(ctx context.Context, tx *sqlx.Tx, id string, attempts, responseCode int, responseBody string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = 'success', attempts = ?, response_code = ?, response_body = ?,
		    error_message = NULL, next_retry_at = NULL, delivered_at = NOW(), updated_at = NOW()
		WHERE id = ? AND status <> 'success'
	`, attempts, responseCode, responseBody, id)
	return err
}

func (r *DeliveriesRepositoryImpl) MarkRetrying(ctx context.Context, tx *sqlx.Tx, id string, attempts int, responseCode *int, responseBody, errorMessage *string, nextRetryAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = 'retrying', attempts = ?, response_code = ?, response_body = ?,
		    error_message = ?, next_retry_at = ?, updated_at = NOW()
		WHERE id = ? AND status <> 'success'
	`, attempts, responseCode, responseBody, errorMessage, nextRetryAt, id)
	return err
}

func (r *DeliveriesRepositoryImpl) MarkFailed(ctx context.Context, tx *sqlx.Tx, id string, attempts int, responseCode *int, responseBody, errorMessage *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = 'failed', attempts = ?, response_code = ?, response_body = ?,
		    error_message = ?, next_retry_at = NULL, updated_at = NOW()
		WHERE id = ? AND status <> 'success'
	`, attempts, responseCode, responseBody, errorMessage, id)
	return err
}

func (r *DeliveriesRepositoryImpl) ListDue(ctx context.Context, limit int) ([]model.WebhookDelivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT ` + deliveryCols + `
		FROM webhook_deliveries
		WHERE status = 'retrying' AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC
		LIMIT ?`
	var out []model.WebhookDelivery
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DeliveriesRepositoryImpl) List(ctx context.Context, tenantID, subscriptionID string, status model.DeliveryStatus, limit, offset int) ([]model.WebhookDelivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + deliveryCols + `
		FROM webhook_deliveries
		WHERE tenant_id = ?`
	args := []any{tenantID}

	if subscriptionID != "" {
		q += " AND subscription_id = ?"
		args = append(args, subscriptionID)
	}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var out []model.WebhookDelivery
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}
