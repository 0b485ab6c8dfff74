package repository

import (
	"context"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHDeliveriesRepository lists delivery history from ClickHouse (latest-state
// view maintained by the CDC pipeline). The reporting surface reads here so
// tenant-wide scans never touch the MySQL hot path.
type CHDeliveriesRepository interface {
	ListByTenant(ctx context.Context, tenantID, subscriptionID string, status model.DeliveryStatus, limit, offset int) ([]model.WebhookDelivery, error)
}

type chDeliveriesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDeliveriesRepository(ch *sqlx.DB) CHDeliveriesRepository {
	return &chDeliveriesRepository{ch: ch}
}

func (r *chDeliveriesRepository) ListByTenant(ctx context.Context, tenantID, subscriptionID string, status model.DeliveryStatus, limit, offset int) ([]model.WebhookDelivery, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, subscription_id, event_id, tenant_id, status, attempts,
		       response_code, response_body, error_message, next_retry_at,
		       delivered_at, created_at, updated_at
		FROM hookline.deliveries_latest
		WHERE tenant_id = ?
	`
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

	var rows []model.WebhookDelivery
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
