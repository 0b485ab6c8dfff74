package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/db"
	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/ledger"
	"github.com/hooklinehq/hookline/internal/logger"
	"github.com/hooklinehq/hookline/internal/matcher"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Run retry worker (redeliver due webhook deliveries)",
	RunE:  runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) DB connection (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// 3) repositories
	subsRepo := repository.NewSubscriptionsRepository(dbx)
	deliveriesRepo := repository.NewDeliveriesRepository(dbx)
	eventsRepo := repository.NewEventsRepository(dbx)

	// 4) delivery pipeline (shared with the dispatch worker)
	resolver := matcher.New(subsRepo)
	outcomes := ledger.New(dbx, subsRepo, deliveriesRepo, logger.L())
	sender := dispatcher.NewHTTPSender(cfg.Dispatcher.RequestTimeout)
	disp := dispatcher.New(resolver, outcomes, sender, cfg.Dispatcher.RequestTimeout, logger.L())

	p := worker.NewRetryPoller(deliveriesRepo, subsRepo, eventsRepo, disp, logger.L())
	if cfg.Retry.PollInterval > 0 {
		p.Interval = cfg.Retry.PollInterval
	}
	if cfg.Retry.BatchSize > 0 {
		p.BatchSize = cfg.Retry.BatchSize
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> retry poller started interval=%s batch=%d workers=%d", p.Interval, p.BatchSize, p.Workers)

	return p.Run(ctx)
}
