package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/jmoiron/sqlx"
)

// EventsRepository defines persistence for the append-only webhook_events table.
type EventsRepository interface {
	// Insert writes a single event row. If tx is nil, it opens and commits an
	// internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, e model.WebhookEvent) error
	GetByID(ctx context.Context, id string) (*model.WebhookEvent, error)
}

type EventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEventsRepository(db *sqlx.DB) *EventsRepositoryImpl {
	return &EventsRepositoryImpl{db: db}
}

var _ EventsRepository = (*EventsRepositoryImpl)(nil)

func (r *EventsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *EventsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.WebhookEvent) error {
	const q = `
		INSERT INTO webhook_events
		    (id, event_type, source_app, tenant_id, user_id, payload, metadata, created_at)
		VALUES
		    (?,  ?,          ?,          ?,         ?,       ?,       ?,        ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			e.ID, e.EventType, e.SourceApp, e.TenantID, e.UserID, []byte(e.Payload), e.Metadata, e.CreatedAt,
		)
		return err
	})
}

func (r *EventsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.WebhookEvent, error) {
	const q = `
		SELECT id, event_type, source_app, tenant_id, user_id, payload, metadata, created_at
		FROM webhook_events
		WHERE id = ?
	`
	var e model.WebhookEvent
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
