package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/http/middleware"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/service/intake"
	"github.com/hooklinehq/hookline/internal/service/registry"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	tenantsRepo := repository.NewTenantsRepository(mysqlDB)
	eventsRepo := repository.NewEventsRepository(mysqlDB)
	subsRepo := repository.NewSubscriptionsRepository(mysqlDB)
	deliveriesRepo := repository.NewDeliveriesRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chDeliveriesRepo := repository.NewCHDeliveriesRepository(clickhouseDB)

	// services
	intakeSvc := intake.New(mysqlDB, eventsRepo, outboxRepo)
	registrySvc := registry.New(subsRepo)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(tenantsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:tenant:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/events", emitEventHandler(intakeSvc))

	v1.POST("/subscriptions", createSubscriptionHandler(registrySvc))
	v1.GET("/subscriptions", listSubscriptionsHandler(registrySvc))
	v1.GET("/subscriptions/:id", getSubscriptionHandler(registrySvc))
	v1.PATCH("/subscriptions/:id", updateSubscriptionHandler(registrySvc))
	v1.DELETE("/subscriptions/:id", deleteSubscriptionHandler(registrySvc))
	v1.POST("/subscriptions/:id/activate", activateSubscriptionHandler(registrySvc))

	v1.GET("/deliveries", listDeliveriesHandler(deliveriesRepo))
	v1.GET("/deliveries/:id", getDeliveryHandler(deliveriesRepo))

	v1.GET("/reports/deliveries", reportDeliveriesHandler(chDeliveriesRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
