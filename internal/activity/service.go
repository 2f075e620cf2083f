package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/redpanda"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/idempotency"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/workerpool"
)

const (
	projectionHandler = "activity-projection"
	alertHandler      = "low-stock-alert"
)

// Inbox deduplicates message handling. *idempotency.Inbox implements it.
type Inbox interface {
	ProcessTx(ctx context.Context, key, handlerName string, payload json.RawMessage, fn idempotency.TxFunc) (*idempotency.ProcessResult, error)
	Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
}

// Submitter queues background work. *workerpool.Pool implements it.
type Submitter interface {
	Submit(task *workerpool.Task) error
}

// Service consumes the event stream. Each event is written to the
// activity log at most once; low-stock events also queue a supplier alert,
// sent at most once per item per day.
type Service struct {
	inbox   Inbox
	writer  EntryWriter
	alerter Alerter
	alerts  Submitter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(inbox Inbox, writer EntryWriter, alerter Alerter, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{inbox: inbox, writer: writer, alerter: alerter, metrics: m, logger: logger}
}

// SetAlertQueue routes low-stock alerts through q. Without a queue they
// are sent inline.
func (s *Service) SetAlertQueue(q Submitter) {
	s.alerts = q
}

// HandleMessage is the consumer callback. Undecodable records are logged
// and skipped; any returned error makes the consumer retry the record.
func (s *Service) HandleMessage(ctx context.Context, msg *redpanda.ConsumedMessage) error {
	evt, err := events.Parse(msg.Value)
	if err != nil {
		s.logger.Warn("skipping undecodable record",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		s.count("unknown", "invalid")
		return nil
	}
	return s.Handle(ctx, evt)
}

// Handle projects one event.
func (s *Service) Handle(ctx context.Context, evt *events.Event) error {
	log := s.logger.With(zap.String("event_id", evt.ID), zap.String("event_type", string(evt.Type)))

	entry, ok, err := Describe(evt)
	if err != nil {
		log.Warn("skipping malformed event", zap.Error(err))
		s.count(evt.Type, "invalid")
		return nil
	}
	if !ok {
		s.count(evt.Type, "ignored")
		return nil
	}

	res, err := s.inbox.ProcessTx(ctx, idempotency.Key("activity", evt.ID), projectionHandler, evt.Data,
		func(ctx context.Context, tx pgx.Tx) (json.RawMessage, error) {
			if _, err := s.writer.Write(ctx, tx, entry); err != nil {
				return nil, err
			}
			return nil, nil
		})
	switch {
	case errors.Is(err, idempotency.ErrPreviouslyFailed):
		log.Warn("event previously failed, skipping")
		s.count(evt.Type, "skipped")
		return nil
	case err != nil:
		s.count(evt.Type, "failed")
		return fmt.Errorf("project %s: %w", evt.ID, err)
	}

	if res.IsNew {
		s.count(evt.Type, "projected")
		if s.metrics != nil {
			s.metrics.ActivityProjected.Inc()
		}
	} else {
		s.count(evt.Type, "duplicate")
	}

	// Queued on every delivery; the daily key keeps the alert single.
	if evt.Type == events.InventoryLowStock {
		return s.queueAlert(ctx, evt)
	}
	return nil
}

type alertTask struct {
	EventID    string
	OccurredAt time.Time
	Data       inventory.EventData
}

func (s *Service) queueAlert(ctx context.Context, evt *events.Event) error {
	var d inventory.EventData
	if err := evt.Decode(&d); err != nil {
		return nil
	}
	task := alertTask{EventID: evt.ID, OccurredAt: evt.OccurredAt, Data: d}
	if s.alerts == nil {
		return s.sendAlert(ctx, task)
	}
	if err := s.alerts.Submit(&workerpool.Task{ID: evt.ID, Payload: task}); err != nil {
		return fmt.Errorf("queue low-stock alert: %w", err)
	}
	return nil
}

// RunAlertTask is the worker pool function for queued alerts.
func (s *Service) RunAlertTask(ctx context.Context, task *workerpool.Task) error {
	at, ok := task.Payload.(alertTask)
	if !ok {
		return fmt.Errorf("unexpected alert payload %T", task.Payload)
	}
	return s.sendAlert(ctx, at)
}

func (s *Service) sendAlert(ctx context.Context, task alertTask) error {
	alert := newAlert(task.EventID, task.Data, task.OccurredAt)
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	key := idempotency.DailyKey(task.OccurredAt, "low-stock", task.Data.ItemID)

	res, err := s.inbox.Process(ctx, key, alertHandler, payload,
		func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			return nil, s.alerter.Notify(ctx, alert)
		})
	outcome := "sent"
	switch {
	case errors.Is(err, ErrRejected), errors.Is(err, idempotency.ErrPreviouslyFailed):
		outcome = "rejected"
		err = nil
	case circuitbreaker.IsOpen(err):
		outcome = "circuit_open"
	case err != nil:
		outcome = "failed"
	case !res.IsNew && !res.WasRecovered:
		outcome = "duplicate"
	}
	if s.metrics != nil {
		s.metrics.LowStockAlerts.WithLabelValues(task.Data.Supplier, outcome).Inc()
	}
	if err != nil {
		return fmt.Errorf("low-stock alert for %s: %w", task.Data.ItemID, err)
	}
	if outcome == "rejected" {
		s.logger.Warn("supplier rejected low-stock alert",
			zap.String("item_id", task.Data.ItemID),
			zap.String("supplier", task.Data.Supplier))
	}
	return nil
}

// Retryable tells the worker pool which alert failures to retry.
func Retryable(err error) bool {
	return !errors.Is(err, ErrRejected) && !errors.Is(err, idempotency.ErrPreviouslyFailed)
}

func (s *Service) count(t events.Type, outcome string) {
	if s.metrics != nil {
		s.metrics.EventsConsumed.WithLabelValues(string(t), outcome).Inc()
	}
}
