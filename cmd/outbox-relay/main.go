// Command outbox-relay publishes committed outbox entries to Redpanda.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/config"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/redpanda"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/tracing"
)

const serviceName = "outbox-relay"

var version = "dev"

// maintenanceInterval paces dead-lettering, cleanup and the backlog gauge.
const maintenanceInterval = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		return err
	}
	defer admin.Close()
	if err := admin.EnsureTopics(ctx); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}

	m := metrics.New()
	producer, err := redpanda.NewProducer(redpanda.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err != nil {
		return err
	}
	defer producer.Close()
	producer.OnPublish(func(topic string, err error) {
		if err != nil {
			m.PublishErrors.WithLabelValues(topic).Inc()
		}
	})
	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.KafkaBrokers))

	outbox := postgres.NewOutbox(pool, producer, postgres.OutboxConfig{
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, logger)
	outbox.OnPublished(func(entry *postgres.OutboxEntry) {
		m.EventsPublished.WithLabelValues(entry.EventType).Inc()
	})

	ops := &http.Server{
		Addr: ":" + cfg.OpsPort,
		Handler: api.NewOpsRouter(api.OpsConfig{
			Service: serviceName,
			Version: version,
			Metrics: m,
			Checks:  map[string]api.Pinger{"database": pool, "broker": producer},
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	outbox.Start()
	maintain(ctx, outbox, m, cfg.OutboxRetention, logger)

	logger.Info("shutting down")
	outbox.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
	logger.Info("outbox relay stopped")
	return nil
}

// maintain runs until ctx ends. Entries that exhausted their retries go to
// the dead-letter topic, processed rows older than retention are deleted
// and the backlog gauge is refreshed.
func maintain(ctx context.Context, outbox *postgres.Outbox, m *metrics.Metrics, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if moved, err := outbox.MoveToDeadLetter(ctx); err != nil {
			logger.Error("dead-letter sweep failed", zap.Error(err))
		} else if moved > 0 {
			m.EventsDeadLetter.Add(float64(moved))
			logger.Warn("outbox entries dead-lettered", zap.Int("count", moved))
		}

		if deleted, err := outbox.CleanupProcessed(ctx, retention); err != nil {
			logger.Error("outbox cleanup failed", zap.Error(err))
		} else if deleted > 0 {
			logger.Info("outbox cleaned up", zap.Int64("deleted", deleted))
		}

		stats, err := outbox.Stats(ctx)
		if err != nil {
			logger.Error("outbox stats failed", zap.Error(err))
			continue
		}
		m.OutboxPending.Set(float64(stats.Pending))
		if stats.Failed > 0 {
			logger.Warn("outbox entries awaiting dead-letter", zap.Int64("count", stats.Failed))
		}
	}
}
