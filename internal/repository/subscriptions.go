package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/jmoiron/sqlx"
)

// SubscriptionsRepository defines persistence for the tenant-managed
// webhook_subscriptions table.
type SubscriptionsRepository interface {
	Insert(ctx context.Context, s model.WebhookSubscription) error
	GetByID(ctx context.Context, tenantID, id string) (*model.WebhookSubscription, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]model.WebhookSubscription, error)
	Update(ctx context.Context, s model.WebhookSubscription) error
	Delete(ctx context.Context, tenantID, id string) error
	SetStatus(ctx context.Context, tenantID, id string, status model.SubscriptionStatus) (bool, error)

	// ListActiveByPattern feeds the matcher: active subscriptions for the
	// tenant whose event_types array contains the pattern string verbatim.
	ListActiveByPattern(ctx context.Context, tenantID, pattern string) ([]model.WebhookSubscription, error)

	// GetForUpdate locks the subscription row for the duration of tx so that
	// failure_count/status updates are a single conditional write.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (failureCount int, status model.SubscriptionStatus, cfg model.RetryConfig, err error)
	SetFailureState(ctx context.Context, tx *sqlx.Tx, id string, failureCount int, status model.SubscriptionStatus) error
	ResetFailures(ctx context.Context, tx *sqlx.Tx, id string) error
}

type SubscriptionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSubscriptionsRepository(db *sqlx.DB) *SubscriptionsRepositoryImpl {
	return &SubscriptionsRepositoryImpl{db: db}
}

var _ SubscriptionsRepository = (*SubscriptionsRepositoryImpl)(nil)

const subscriptionCols = `
	id, app_id, tenant_id, name, event_types, endpoint_url, secret, status,
	retry_config, filters, failure_count, last_triggered, created_at, updated_at
`

func (r *SubscriptionsRepositoryImpl) Insert(ctx context.Context, s model.WebhookSubscription) error {
	const q = `
		INSERT INTO webhook_subscriptions
		    (id, app_id, tenant_id, name, event_types, endpoint_url, secret, status,
		     retry_config, filters, failure_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.AppID, s.TenantID, s.Name, s.EventTypes, s.EndpointURL, s.Secret,
		s.Status.String(), s.RetryConfig, s.Filters,
	)
	return err
}

func (r *SubscriptionsRepositoryImpl) GetByID(ctx context.Context, tenantID, id string) (*model.WebhookSubscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM webhook_subscriptions WHERE tenant_id = ? AND id = ?`
	var s model.WebhookSubscription
	if err := r.db.GetContext(ctx, &s, q, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionsRepositoryImpl) List(ctx context.Context, tenantID string, limit, offset int) ([]model.WebhookSubscription, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + subscriptionCols + `
		FROM webhook_subscriptions
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
	var out []model.WebhookSubscription
	if err := r.db.SelectContext(ctx, &out, q, tenantID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites the admin-editable fields. The secret and the failure
// lifecycle columns are deliberately not touched here.
func (r *SubscriptionsRepositoryImpl) Update(ctx context.Context, s model.WebhookSubscription) error {
	const q = `
		UPDATE webhook_subscriptions
		SET name = ?, event_types = ?, endpoint_url = ?, status = ?,
		    retry_config = ?, filters = ?, updated_at = NOW()
		WHERE tenant_id = ? AND id = ?
	`
	_, err := r.db.ExecContext(ctx, q,
		s.Name, s.EventTypes, s.EndpointURL, s.Status.String(),
		s.RetryConfig, s.Filters, s.TenantID, s.ID,
	)
	return err
}

func (r *SubscriptionsRepositoryImpl) Delete(ctx context.Context, tenantID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_subscriptions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	return err
}

func (r *SubscriptionsRepositoryImpl) SetStatus(ctx context.Context, tenantID, id string, status model.SubscriptionStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		SET status = ?, updated_at = NOW()
		WHERE tenant_id = ? AND id = ?
	`, status.String(), tenantID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SubscriptionsRepositoryImpl) ListActiveByPattern(ctx context.Context, tenantID, pattern string) ([]model.WebhookSubscription, error) {
	q := `SELECT ` + subscriptionCols + `
		FROM webhook_subscriptions
		WHERE tenant_id = ?
		  AND status = 'active'
		  AND JSON_CONTAINS(event_types, JSON_QUOTE(?))`
	var out []model.WebhookSubscription
	if err := r.db.SelectContext(ctx, &out, q, tenantID, pattern); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SubscriptionsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (int, model.SubscriptionStatus, model.RetryConfig, error) {
	var row struct {
		FailureCount int                      `db:"failure_count"`
		Status       model.SubscriptionStatus `db:"status"`
		RetryConfig  model.RetryConfig        `db:"retry_config"`
	}
	err := tx.QueryRowxContext(ctx, `
		SELECT failure_count, status, retry_config
		FROM webhook_subscriptions
		WHERE id = ?
		FOR UPDATE
	`, id).StructScan(&row)
	if err != nil {
		return 0, "", model.RetryConfig{}, err
	}
	return row.FailureCount, row.Status, row.RetryConfig, nil
}

func (r *SubscriptionsRepositoryImpl) SetFailureState(ctx context.Context, tx *sqlx.Tx, id string, failureCount int, status model.SubscriptionStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = ?, status = ?, updated_at = NOW()
		WHERE id = ?
	`, failureCount, status.String(), id)
	return err
}

func (r *SubscriptionsRepositoryImpl) ResetFailures(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = 0, last_triggered = NOW(), updated_at = NOW()
		WHERE id = ?
	`, id)
	return err
}
