package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hooklinehq/hookline/internal/config"
	"github.com/hooklinehq/hookline/internal/db"
	"github.com/hooklinehq/hookline/internal/dispatcher"
	"github.com/hooklinehq/hookline/internal/kafka"
	"github.com/hooklinehq/hookline/internal/ledger"
	"github.com/hooklinehq/hookline/internal/logger"
	"github.com/hooklinehq/hookline/internal/matcher"
	"github.com/hooklinehq/hookline/internal/metrics"
	"github.com/hooklinehq/hookline/internal/repository"
	"github.com/hooklinehq/hookline/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run dispatch worker (consume events, deliver webhooks)",
	RunE:  runDispatch,
}

func runDispatch(cmd *cobra.Command, args []string) error {
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

	// 4) delivery pipeline
	resolver := matcher.New(subsRepo)
	outcomes := ledger.New(dbx, subsRepo, deliveriesRepo, logger.L())
	sender := dispatcher.NewHTTPSender(cfg.Dispatcher.RequestTimeout)
	disp := dispatcher.New(resolver, outcomes, sender, cfg.Dispatcher.RequestTimeout, logger.L())

	// 5) kafka consumer
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "webhooks.events"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "hookline-dispatch"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewDispatchKafka(consumer, disp, logger.L())
	if cfg.Dispatcher.WorkerCount > 0 {
		w.Workers = cfg.Dispatcher.WorkerCount
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> dispatch started topic=%s group=%s workers=%d", topic, groupID, w.Workers)

	return w.Run(ctx)
}
