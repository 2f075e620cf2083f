// Command activity-service consumes hospital events into the activity feed
// and alerts suppliers about low stock.
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

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/activity"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/config"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/redpanda"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/tracing"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/idempotency"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/workerpool"
)

const serviceName = "activity-service"

var version = "dev"

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
	breakers := circuitbreaker.NewManager(activity.BreakerConfig(), logger)

	var alerter activity.Alerter = activity.LogAlerter{Logger: logger}
	if cfg.SupplierWebhookURL != "" {
		hook, err := activity.NewWebhook(cfg.SupplierWebhookURL, breakers, 0, logger)
		if err != nil {
			return err
		}
		alerter = hook
	} else {
		logger.Info("SUPPLIER_WEBHOOK_URL not set, low-stock alerts are only logged")
	}

	inbox := idempotency.NewInbox(pool, idempotency.DefaultInboxConfig(), logger)
	inbox.StartCleanup()
	defer inbox.Stop()

	svc := activity.NewService(inbox, activity.NewEntryWriter(), alerter, m, logger)

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.ActivityWorkers
	poolCfg.Retryable = activity.Retryable
	workers, err := workerpool.New(poolCfg, svc.RunAlertTask, logger)
	if err != nil {
		return err
	}
	workers.OnResult(func(res *workerpool.Result) {
		if !res.Success() {
			logger.Error("low-stock alert gave up",
				zap.String("event_id", res.TaskID),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err))
		}
	})
	workers.Start()
	svc.SetAlertQueue(workers)

	consumer, err := redpanda.NewConsumer(
		redpanda.DefaultConsumerConfig(cfg.KafkaBrokers, cfg.ActivityGroup, redpanda.TopicEvents),
		svc.HandleMessage, logger)
	if err != nil {
		return err
	}
	consumer.OnGiveUp = func(_ context.Context, msg *redpanda.ConsumedMessage, err error) {
		logger.Error("event dropped after retries",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}

	queueCheck := api.PingFunc(func(context.Context) error {
		if !workers.IsHealthy() {
			return errors.New("alert queue is nearly full")
		}
		return nil
	})
	ops := &http.Server{
		Addr: ":" + cfg.OpsPort,
		Handler: api.NewOpsRouter(api.OpsConfig{
			Service:  serviceName,
			Version:  version,
			Metrics:  m,
			Checks:   map[string]api.Pinger{"database": pool, "broker": admin, "alert_queue": queueCheck},
			Breakers: breakers,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	consumer.Start()
	logger.Info("activity service started",
		zap.String("group", cfg.ActivityGroup),
		zap.Int("workers", poolCfg.Workers))

	observe(ctx, admin, workers, breakers, m, cfg.ActivityGroup, logger)

	logger.Info("shutting down")
	consumer.Stop()
	workers.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
	logger.Info("activity service stopped")
	return nil
}

// observe refreshes the gauges and logs consumer lag until ctx ends.
func observe(ctx context.Context, admin *redpanda.Admin, workers *workerpool.Pool, breakers *circuitbreaker.Manager,
	m *metrics.Metrics, group string, logger *zap.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := workers.Stats()
		m.WorkerQueueDepth.Set(float64(stats.QueueDepth))
		m.ObserveBreakers(breakers.Health())

		lag, err := admin.GroupLag(ctx, group)
		if err != nil {
			logger.Warn("consumer lag unavailable", zap.Error(err))
			continue
		}
		for topic, n := range lag {
			if n > 0 {
				logger.Info("consumer lag", zap.String("topic", topic), zap.Int64("lag", n))
			}
		}
	}
}
