package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hooklinehq/hookline/internal/model"
	"github.com/jmoiron/sqlx"
)

type TenantsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
}

type TenantsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTenantsRepository(db *sqlx.DB) *TenantsRepositoryImpl {
	return &TenantsRepositoryImpl{db: db}
}

var _ TenantsRepository = (*TenantsRepositoryImpl)(nil)

func (r *TenantsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	const q = `
		SELECT id, name, api_key, status, rate_limit_rps, created_at, updated_at
		FROM tenants
		WHERE api_key = ?
	`
	var t model.Tenant
	if err := r.db.GetContext(ctx, &t, q, apiKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
