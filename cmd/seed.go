package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/db"
	"github.com/hooklinehq/hookline/internal/model"
	"github.com/hooklinehq/hookline/internal/signature"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo tenants and subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo tenants...")

		if err := seedTenants(sqlDB); err != nil {
			return err
		}
		if err := seedSubscriptions(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedTenants inserts deterministic demo tenants (idempotent).
func seedTenants(dbx *sqlx.DB) error {
	tenants := []model.Tenant{
		{
			ID:           "01J0000000000000000TENANT1",
			Name:         "Acme Commerce",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
		},
		{
			ID:           "01J0000000000000000TENANT2",
			Name:         "Foobar Payments",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(50),
		},
		{
			ID:           "01J0000000000000000TENANT3",
			Name:         "Suspended Inc",
			APIKey:       "33333333333333333333333333333333",
			Status:       "suspended",
			RateLimitRPS: nil,
		},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO tenants
    (id, name, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, t := range tenants {
		if _, err := tx.Exec(q, t.ID, t.Name, t.APIKey, t.Status, t.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert tenant %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tenants: %w", err)
	}
	return nil
}

// seedSubscriptions creates demo subscriptions for tenants that don't have one
// yet. Secrets are generated per run but existing rows are left untouched.
func seedSubscriptions(dbx *sqlx.DB) error {
	subs := []model.WebhookSubscription{
		{
			ID:          "01J00000000000000000DEMOS1",
			AppID:       "demo-shop",
			TenantID:    "01J0000000000000000TENANT1",
			Name:        "order events to fulfillment",
			EventTypes:  model.StringList{"order.created", "order.updated"},
			EndpointURL: "https://fulfillment.example.com/hooks/orders",
			Status:      model.SubscriptionActive,
			RetryConfig: model.DefaultRetryConfig(),
		},
		{
			ID:          "01J00000000000000000DEMOS2",
			AppID:       "demo-shop",
			TenantID:    "01J0000000000000000TENANT1",
			Name:        "all user events",
			EventTypes:  model.StringList{"user.*"},
			EndpointURL: "https://crm.example.com/hooks/users",
			Status:      model.SubscriptionActive,
			RetryConfig: model.RetryConfig{MaxRetries: 5, RetryDelay: 30, ExponentialBackoff: true},
			Filters:     model.JSONMap{"data.plan": "enterprise"},
		},
		{
			ID:          "01J00000000000000000DEMOS3",
			AppID:       "demo-billing",
			TenantID:    "01J0000000000000000TENANT2",
			Name:        "big payments to finance",
			EventTypes:  model.StringList{"payment.completed"},
			EndpointURL: "https://finance.example.com/hooks/payments",
			Status:      model.SubscriptionActive,
			RetryConfig: model.RetryConfig{MaxRetries: 3, RetryDelay: 60, ExponentialBackoff: false},
			Filters:     model.JSONMap{"data.currency": []any{"USD", "EUR"}},
		},
	}

	const q = `
INSERT INTO webhook_subscriptions
    (id, app_id, tenant_id, name, event_types, endpoint_url, secret, status,
     retry_config, filters, failure_count, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
ON DUPLICATE KEY UPDATE id = id
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, s := range subs {
		if _, err := tx.Exec(q,
			s.ID, s.AppID, s.TenantID, s.Name, s.EventTypes, s.EndpointURL,
			signature.GenerateSecret(), s.Status, s.RetryConfig, s.Filters, now, now,
		); err != nil {
			return fmt.Errorf("insert subscription %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subscriptions: %w", err)
	}
	return nil
}

func intptr(i int) *int { return &i }
