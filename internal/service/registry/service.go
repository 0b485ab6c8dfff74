// Package registry manages tenant-configured webhook subscriptions: creation
// with secret generation, validated updates, and the explicit reactivation
// path out of the failed state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/hooklinehq/hookline/internal/util"
)

var ErrNotFound = errors.New("subscription not found")

// ValidationError reports a configuration problem surfaced synchronously at
// create/update time, never at delivery time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type Service struct {
	subs repository.SubscriptionsRepository
}

func New(subs repository.SubscriptionsRepository) *Service {
	return &Service{subs: subs}
}

type CreateInput struct {
	AppID       string
	Name        string
	EventTypes  []string
	EndpointURL string
	RetryConfig *model.RetryConfig
	Filters     map[string]any
}

// Create validates the configuration, generates the signing secret, and
// persists the subscription as active. The returned record is the only place
// the secret is ever exposed.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (*model.WebhookSubscription, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := validatePatterns(in.EventTypes); err != nil {
		return nil, err
	}
	if err := validateEndpoint(in.EndpointURL); err != nil {
		return nil, err
	}
	if err := validateFilters(in.Filters); err != nil {
		return nil, err
	}

	cfg := model.DefaultRetryConfig()
	if in.RetryConfig != nil {
		if err := validateRetryConfig(*in.RetryConfig); err != nil {
			return nil, err
		}
		cfg = *in.RetryConfig
	}

	sub := model.WebhookSubscription{
		ID:          util.New(),
		AppID:       in.AppID,
		TenantID:    tenantID,
		Name:        in.Name,
		EventTypes:  model.StringList(in.EventTypes),
		EndpointURL: in.EndpointURL,
		Secret:      signature.GenerateSecret(),
		Status:      model.SubscriptionActive,
		RetryConfig: cfg,
		Filters:     model.JSONMap(in.Filters),
	}
	if err := s.subs.Insert(ctx, sub); err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return &sub, nil
}

// UpdateInput carries partial updates; nil fields are untouched. The secret
// is not updatable by design.
type UpdateInput struct {
	Name        *string
	EventTypes  []string
	EndpointURL *string
	RetryConfig *model.RetryConfig
	Filters     map[string]any
	Status      *model.SubscriptionStatus
}

func (s *Service) Update(ctx context.Context, tenantID, id string, in UpdateInput) (*model.WebhookSubscription, error) {
	sub, err := s.subs.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		sub.Name = *in.Name
	}
	if in.EventTypes != nil {
		if err := validatePatterns(in.EventTypes); err != nil {
			return nil, err
		}
		sub.EventTypes = model.StringList(in.EventTypes)
	}
	if in.EndpointURL != nil {
		if err := validateEndpoint(*in.EndpointURL); err != nil {
			return nil, err
		}
		sub.EndpointURL = *in.EndpointURL
	}
	if in.RetryConfig != nil {
		if err := validateRetryConfig(*in.RetryConfig); err != nil {
			return nil, err
		}
		sub.RetryConfig = *in.RetryConfig
	}
	if in.Filters != nil {
		if err := validateFilters(in.Filters); err != nil {
			return nil, err
		}
		sub.Filters = model.JSONMap(in.Filters)
	}
	if in.Status != nil {
		// Only active<->paused through updates; "failed" is owned by the
		// delivery lifecycle and left via Activate.
		if *in.Status != model.SubscriptionActive && *in.Status != model.SubscriptionPaused {
			return nil, &ValidationError{Field: "status", Reason: "must be active or paused"}
		}
		sub.Status = *in.Status
	}

	if err := s.subs.Update(ctx, *sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	masked := sub.Masked()
	return &masked, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*model.WebhookSubscription, error) {
	sub, err := s.subs.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound
	}
	masked := sub.Masked()
	return &masked, nil
}

func (s *Service) List(ctx context.Context, tenantID string, limit, offset int) ([]model.WebhookSubscription, error) {
	subs, err := s.subs.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i] = subs[i].Masked()
	}
	return subs, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.subs.Delete(ctx, tenantID, id)
}

// Activate is the explicit administrative path out of "failed" (or "paused").
// The failure count deliberately stays as-is so an endpoint that keeps
// failing after reactivation trips again quickly.
func (s *Service) Activate(ctx context.Context, tenantID, id string) error {
	ok, err := s.subs.SetStatus(ctx, tenantID, id, model.SubscriptionActive)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func validatePatterns(patterns []string) error {
	if len(patterns) == 0 {
		return &ValidationError{Field: "event_types", Reason: "must contain at least one pattern"}
	}
	for _, p := range patterns {
		if !model.ValidPattern(p) {
			return &ValidationError{Field: "event_types", Reason: fmt.Sprintf("bad pattern %q", p)}
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "endpoint_url", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// validateFilters accepts scalar expected values or flat collections of
// scalars. Nested documents as expected values are rejected here so delivery
// never trips over an unevaluable filter.
func validateFilters(filters map[string]any) error {
	for path, v := range filters {
		if path == "" {
			return &ValidationError{Field: "filters", Reason: "empty filter path"}
		}
		switch vv := v.(type) {
		case string, bool, float64, int, int64, nil:
		case []any:
			for _, e := range vv {
				switch e.(type) {
				case string, bool, float64, int, int64:
				default:
					return &ValidationError{Field: "filters", Reason: fmt.Sprintf("%s: collection values must be scalars", path)}
				}
			}
		default:
			return &ValidationError{Field: "filters", Reason: fmt.Sprintf("%s: value must be a scalar or collection of scalars", path)}
		}
	}
	return nil
}

func validateRetryConfig(cfg model.RetryConfig) error {
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 20 {
		return &ValidationError{Field: "retry_config.max_retries", Reason: "must be between 0 and 20"}
	}
	if cfg.RetryDelay <= 0 {
		return &ValidationError{Field: "retry_config.retry_delay", Reason: "must be positive seconds"}
	}
	return nil
}
