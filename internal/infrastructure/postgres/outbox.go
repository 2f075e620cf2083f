package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
)

// DeadLetterTopic receives outbox entries that exhausted their retries.
const DeadLetterTopic = events.Topic + ".dlq"

// OutboxEntry is one row of the outbox table.
type OutboxEntry struct {
	ID            int64
	EventID       string
	AggregateID   string
	AggregateType string
	EventType     string
	Topic         string
	Key           string
	Payload       json.RawMessage
	CreatedAt     time.Time
	RetryCount    int
	LastError     *string
}

// OutboxConfig controls the relay loop.
type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries before an entry is moved to the dead-letter topic.
	MaxRetries int
}

// DefaultOutboxConfig returns the relay defaults.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:    100,
		PollInterval: 250 * time.Millisecond,
		MaxRetries:   5,
	}
}

// Publisher sends one record to the stream.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Querier is satisfied by both a pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AppendEvent writes evt to the outbox. Call it in the same transaction as
// the state change the event describes.
func AppendEvent(ctx context.Context, q Querier, evt *events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO outbox (event_id, aggregate_id, aggregate_type, event_type, topic, message_key, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.AggregateID, evt.AggregateType, string(evt.Type), events.Topic, evt.AggregateID, payload,
	)
	if err != nil {
		return fmt.Errorf("append outbox event %s: %w", evt.Type, err)
	}
	return nil
}

// Outbox relays committed outbox entries to the stream.
type Outbox struct {
	pool      *pgxpool.Pool
	config    OutboxConfig
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer

	onPublished func(entry *OutboxEntry)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutbox creates a relay. Call Start to begin polling.
func NewOutbox(pool *pgxpool.Pool, publisher Publisher, cfg OutboxConfig, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Outbox{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// OnPublished registers a hook called for every entry the relay has
// published. Set it before Start.
func (o *Outbox) OnPublished(fn func(entry *OutboxEntry)) {
	o.onPublished = fn
}

// Start begins the poll loop in the background.
func (o *Outbox) Start() {
	go o.loop()
	o.logger.Info("outbox relay started",
		zap.Int("batch_size", o.config.BatchSize),
		zap.Duration("poll_interval", o.config.PollInterval))
}

// Stop ends the poll loop and waits for the current batch.
func (o *Outbox) Stop() {
	o.cancel()
	<-o.done
	o.logger.Info("outbox relay stopped")
}

func (o *Outbox) loop() {
	defer close(o.done)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.ProcessBatch(o.ctx); err != nil && o.ctx.Err() == nil {
				o.logger.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes up to BatchSize pending entries. Rows are locked
// with SKIP LOCKED for the duration of the transaction so several relays
// can run side by side. It returns the number published.
func (o *Outbox) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := o.tracer.Start(ctx, "outbox.process_batch")
	defer span.End()

	published := 0
	err := WithTx(ctx, o.pool, func(tx pgx.Tx) error {
		entries, err := fetchEntries(ctx, tx, `
			SELECT id, event_id, aggregate_id, aggregate_type, event_type, topic, message_key,
			       payload, created_at, retry_count, last_error
			FROM outbox
			WHERE processed_at IS NULL AND retry_count < $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			o.config.MaxRetries, o.config.BatchSize)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("outbox.batch_size", len(entries)))

		for _, entry := range entries {
			if err := o.publisher.Publish(ctx, entry.Topic, entry.Key, entry.Payload); err != nil {
				o.logger.Warn("outbox publish failed",
					zap.Int64("id", entry.ID),
					zap.String("event_type", entry.EventType),
					zap.Error(err))
				if _, uerr := tx.Exec(ctx,
					`UPDATE outbox SET retry_count = retry_count + 1, last_error = $1 WHERE id = $2`,
					err.Error(), entry.ID,
				); uerr != nil {
					return fmt.Errorf("record outbox failure: %w", uerr)
				}
				// Keep per-aggregate order: stop at the first failure.
				break
			}
			if _, err := tx.Exec(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = $1`, entry.ID); err != nil {
				return fmt.Errorf("mark outbox processed: %w", err)
			}
			if o.onPublished != nil {
				o.onPublished(entry)
			}
			published++
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return published, nil
}

// MoveToDeadLetter publishes entries that exhausted their retries to
// DeadLetterTopic and marks them processed.
func (o *Outbox) MoveToDeadLetter(ctx context.Context) (int, error) {
	moved := 0
	err := WithTx(ctx, o.pool, func(tx pgx.Tx) error {
		entries, err := fetchEntries(ctx, tx, `
			SELECT id, event_id, aggregate_id, aggregate_type, event_type, topic, message_key,
			       payload, created_at, retry_count, last_error
			FROM outbox
			WHERE processed_at IS NULL AND retry_count >= $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED`,
			o.config.MaxRetries, o.config.BatchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := deadLetterPayload(entry)
			if err != nil {
				return err
			}
			if err := o.publisher.Publish(ctx, DeadLetterTopic, entry.Key, payload); err != nil {
				o.logger.Error("dead-letter publish failed", zap.Int64("id", entry.ID), zap.Error(err))
				continue
			}
			if _, err := tx.Exec(ctx, `UPDATE outbox SET processed_at = NOW(), dead_lettered = TRUE WHERE id = $1`, entry.ID); err != nil {
				return fmt.Errorf("mark dead-lettered: %w", err)
			}
			moved++
		}
		return nil
	})
	return moved, err
}

func deadLetterPayload(entry *OutboxEntry) ([]byte, error) {
	payload, err := json.Marshal(struct {
		OriginalTopic string          `json:"original_topic"`
		EventID       string          `json:"event_id"`
		EventType     string          `json:"event_type"`
		AggregateID   string          `json:"aggregate_id"`
		Payload       json.RawMessage `json:"payload"`
		RetryCount    int             `json:"retry_count"`
		LastError     *string         `json:"last_error"`
		CreatedAt     time.Time       `json:"created_at"`
	}{
		OriginalTopic: entry.Topic,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		Payload:       entry.Payload,
		RetryCount:    entry.RetryCount,
		LastError:     entry.LastError,
		CreatedAt:     entry.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal dead-letter entry %d: %w", entry.ID, err)
	}
	return payload, nil
}

func fetchEntries(ctx context.Context, q Querier, sql string, args ...any) ([]*OutboxEntry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		e := &OutboxEntry{}
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateID, &e.AggregateType, &e.EventType,
			&e.Topic, &e.Key, &e.Payload, &e.CreatedAt, &e.RetryCount, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CleanupProcessed deletes entries processed before the retention window.
func (o *Outbox) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := o.pool.Exec(ctx,
		`DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OutboxStats summarises the outbox backlog.
type OutboxStats struct {
	Pending       int64
	Processed24h  int64
	Failed        int64
	OldestPending *time.Time
}

// Stats reports the current backlog.
func (o *Outbox) Stats(ctx context.Context) (*OutboxStats, error) {
	stats := &OutboxStats{}
	err := o.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count < $1),
			COUNT(*) FILTER (WHERE processed_at > NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count >= $1),
			MIN(created_at) FILTER (WHERE processed_at IS NULL)
		FROM outbox`, o.config.MaxRetries,
	).Scan(&stats.Pending, &stats.Processed24h, &stats.Failed, &stats.OldestPending)
	if err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return stats, nil
}
