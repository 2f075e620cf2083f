// Package idempotency implements the inbox pattern: every message is
// recorded under an idempotency key so its side effects run once even
// when the stream redelivers it.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Status represents the processing status of an inbox entry
type Status string

const (
	StatusStarted     Status = "STARTED"
	StatusFinished    Status = "FINISHED"
	StatusRecoverable Status = "RECOVERABLE"
	StatusFailed      Status = "FAILED"
)

type InboxEntry struct {
	IdempotencyKey string
	HandlerName    string
	Status         Status
	Payload        json.RawMessage
	Result         json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
}

type InboxConfig struct {
	// DefaultTTL is how long an entry is kept to catch redeliveries
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	// RecoveryTimeout is when a STARTED entry is considered abandoned
	RecoveryTimeout time.Duration
}

func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		DefaultTTL:      7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		RecoveryTimeout: 5 * time.Minute,
	}
}

var (
	// ErrMessageInProgress indicates another consumer holds the entry.
	ErrMessageInProgress = errors.New("message in progress by another handler")
	// ErrPreviouslyFailed indicates the message failed permanently before.
	ErrPreviouslyFailed  = errors.New("message previously failed permanently")
)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The entry is stored as
// FAILED and later deliveries are rejected with ErrPreviouslyFailed.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isTerminalError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type ProcessResult struct {
	IsNew        bool
	WasRecovered bool
	Result       json.RawMessage
}

// ProcessFunc handles a message whose side effects live outside the
// database, such as an outbound webhook.
type ProcessFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// TxFunc handles a message inside the transaction that claims its key.
type TxFunc func(ctx context.Context, tx pgx.Tx) (json.RawMessage, error)

// Inbox manages idempotent message processing
type Inbox struct {
	pool   *pgxpool.Pool
	config InboxConfig
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInbox(pool *pgxpool.Pool, cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Inbox{
		pool:   pool,
		config: cfg,
		logger: logger,
		tracer: otel.Tracer("inbox"),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ProcessTx claims key and runs fn in the same transaction, so the
// handler's writes commit exactly when the key is marked FINISHED. A
// redelivered key returns IsNew false without calling fn.
func (i *Inbox) ProcessTx(ctx context.Context, key, handlerName string, payload json.RawMessage, fn TxFunc) (*ProcessResult, error) {
	ctx, span := i.tracer.Start(ctx, "inbox.process_tx",
		trace.WithAttributes(
			attribute.String("idempotency_key", key),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin inbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	claimed, recovered, err := i.claim(ctx, tx, key, handlerName, payload)
	if err != nil {
		return nil, err
	}
	if !claimed {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return &ProcessResult{IsNew: false}, nil
	}

	result, handlerErr := fn(ctx, tx)
	if handlerErr != nil {
		span.RecordError(handlerErr)
		_ = tx.Rollback(ctx)
		i.recordFailure(ctx, key, handlerName, payload, handlerErr)
		return nil, handlerErr
	}
	if _, err := tx.Exec(ctx,
		`UPDATE inbox SET status = $1, result = $2, updated_at = NOW() WHERE idempotency_key = $3`,
		StatusFinished, result, key,
	); err != nil {
		return nil, fmt.Errorf("mark inbox finished: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit inbox tx: %w", err)
	}
	return &ProcessResult{IsNew: !recovered, WasRecovered: recovered, Result: result}, nil
}

// claim inserts key as STARTED, or takes over a RECOVERABLE entry. It
// reports false when the key is FINISHED. FAILED and fresh STARTED
// entries are errors.
func (i *Inbox) claim(ctx context.Context, q pgx.Tx, key, handlerName string, payload json.RawMessage) (claimed, recovered bool, err error) {
	var prev Status
	err = q.QueryRow(ctx, `
		INSERT INTO inbox (idempotency_key, handler_name, status, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()
		WHERE inbox.status = 'RECOVERABLE'
		   OR (inbox.status = 'STARTED' AND inbox.updated_at < $6)
		RETURNING (xmax <> 0)`,
		key, handlerName, StatusStarted, payload, i.now().Add(i.config.DefaultTTL),
		i.now().Add(-i.config.RecoveryTimeout),
	).Scan(&recovered)
	if err == nil {
		return true, recovered, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, false, fmt.Errorf("claim inbox key: %w", err)
	}

	if err := q.QueryRow(ctx, `SELECT status FROM inbox WHERE idempotency_key = $1`, key).Scan(&prev); err != nil {
		return false, false, fmt.Errorf("read inbox status: %w", err)
	}
	switch prev {
	case StatusFinished:
		return false, false, nil
	case StatusFailed:
		return false, false, fmt.Errorf("%s: %w", key, ErrPreviouslyFailed)
	default:
		return false, false, ErrMessageInProgress
	}
}

// Process runs fn at most once per key for side effects outside the
// database. The key is claimed and committed before fn runs; a crash
// mid-handler leaves a STARTED entry that is retried after
// RecoveryTimeout.
func (i *Inbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	ctx, span := i.tracer.Start(ctx, "inbox.process",
		trace.WithAttributes(
			attribute.String("idempotency_key", key),
			attribute.String("handler", handlerName),
		))
	defer span.End()

	var claimed, recovered bool
	err := pgx.BeginFunc(ctx, i.pool, func(tx pgx.Tx) error {
		var err error
		claimed, recovered, err = i.claim(ctx, tx, key, handlerName, payload)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		span.SetAttributes(attribute.Bool("duplicate", true))
		return &ProcessResult{IsNew: false}, nil
	}

	result, handlerErr := fn(ctx, payload)
	if handlerErr != nil {
		span.RecordError(handlerErr)
		i.recordFailure(ctx, key, handlerName, payload, handlerErr)
		return nil, handlerErr
	}
	if _, err := i.pool.Exec(ctx,
		`UPDATE inbox SET status = $1, result = $2, updated_at = NOW() WHERE idempotency_key = $3`,
		StatusFinished, result, key,
	); err != nil {
		// The side effect happened; a retry would repeat it.
		i.logger.Error("mark inbox finished", zap.String("key", key), zap.Error(err))
	}
	return &ProcessResult{IsNew: !recovered, WasRecovered: recovered, Result: result}, nil
}

// recordFailure stores the handler error so the key is retried later, or
// never again for permanent errors.
func (i *Inbox) recordFailure(ctx context.Context, key, handlerName string, payload json.RawMessage, handlerErr error) {
	status := StatusRecoverable
	if isTerminalError(handlerErr) {
		status = StatusFailed
	}
	result, _ := json.Marshal(map[string]string{"error": handlerErr.Error()})
	_, err := i.pool.Exec(context.WithoutCancel(ctx), `
		INSERT INTO inbox (idempotency_key, handler_name, status, payload, result, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = EXCLUDED.status, result = EXCLUDED.result, updated_at = NOW()`,
		key, handlerName, status, payload, result, i.now().Add(i.config.DefaultTTL))
	if err != nil {
		i.logger.Error("record inbox failure", zap.String("key", key), zap.Error(err))
	}
}

// Key derives a deterministic idempotency key from its parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// DailyKey is Key with the UTC calendar day of at appended, so a
// recurring condition is acted on once per day.
func DailyKey(at time.Time, parts ...string) string {
	return Key(append(parts, at.UTC().Format(time.DateOnly))...)
}

func (i *Inbox) StartCleanup() {
	go i.cleanupLoop()
	i.logger.Info("inbox cleanup started", zap.Duration("interval", i.config.CleanupInterval))
}

func (i *Inbox) Stop() {
	i.cancel()
	<-i.done
	i.logger.Info("inbox stopped")
}

func (i *Inbox) cleanupLoop() {
	defer close(i.done)

	ticker := time.NewTicker(i.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
			if _, err := i.Cleanup(i.ctx); err != nil {
				i.logger.Error("inbox cleanup failed", zap.Error(err))
			}
		}
	}
}

// Cleanup removes expired entries and returns how many were deleted.
func (i *Inbox) Cleanup(ctx context.Context) (int64, error) {
	tag, err := i.pool.Exec(ctx, `DELETE FROM inbox WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("inbox cleanup: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		i.logger.Info("inbox cleanup completed", zap.Int64("deleted", n))
	}
	return tag.RowsAffected(), nil
}

type InboxStats struct {
	TotalEntries int64
	Started      int64
	Finished     int64
	Recoverable  int64
	Failed       int64
}

func (i *Inbox) Stats(ctx context.Context) (*InboxStats, error) {
	stats := &InboxStats{}
	err := i.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'STARTED'),
			COUNT(*) FILTER (WHERE status = 'FINISHED'),
			COUNT(*) FILTER (WHERE status = 'RECOVERABLE'),
			COUNT(*) FILTER (WHERE status = 'FAILED')
		FROM inbox`,
	).Scan(&stats.TotalEntries, &stats.Started, &stats.Finished, &stats.Recoverable, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("inbox stats: %w", err)
	}
	return stats, nil
}
