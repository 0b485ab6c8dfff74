// Package intake persists emitted domain events and hands them to the
// dispatch pipeline through the transactional outbox.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/util"
	"github.com/jmoiron/sqlx"
)

// EventsTopic is where emitted-event envelopes land for the dispatch worker.
const EventsTopic = "webhooks.events"

var (
	ErrInvalidEventType = errors.New("event_type must be dot-namespaced, e.g. \"user.created\"")
	ErrInvalidPayload   = errors.New("payload must be a JSON document")
)

// Service atomically persists events together with their outbox envelopes.
type Service struct {
	db     *sqlx.DB
	events repository.EventsRepository
	outbox repository.OutboxRepository
}

func New(db *sqlx.DB, eventsRepo repository.EventsRepository, outboxRepo repository.OutboxRepository) *Service {
	return &Service{db: db, events: eventsRepo, outbox: outboxRepo}
}

// EmitInput is what a producing app supplies; id and created_at are assigned
// here.
type EmitInput struct {
	EventType string
	SourceApp string
	TenantID  string
	UserID    *string
	Payload   json.RawMessage
	Metadata  model.JSONMap
}

// Emit validates the input, generates a ULID, and writes the event row plus
// its outbox envelope in a single transaction. The caller gets a durable
// identifier back before any matching or dispatch happens; a failed event
// write aborts and surfaces, while everything downstream is fire-and-forget.
func (s *Service) Emit(ctx context.Context, in EmitInput) (*model.WebhookEvent, error) {
	if !model.ValidEventType(in.EventType) {
		return nil, ErrInvalidEventType
	}
	if len(in.Payload) == 0 {
		in.Payload = json.RawMessage(`{}`)
	}
	if !json.Valid(in.Payload) {
		return nil, ErrInvalidPayload
	}

	evt := model.WebhookEvent{
		ID:        util.New(),
		EventType: in.EventType,
		SourceApp: in.SourceApp,
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Payload:   in.Payload,
		Metadata:  in.Metadata,
		// assigned here, not by the DB, so the outbox envelope carries it
		CreatedAt: time.Now().UTC(),
	}

	env := model.Envelope{
		ID:       evt.ID,
		TenantID: evt.TenantID,
		Event:    evt,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, "webhook_event", evt.ID, EventsTopic, payload); err != nil {
		return nil, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &evt, nil
}
