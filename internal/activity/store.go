package activity

import (
	"context"
	"fmt"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
)

// EntryWriter stores feed entries.
type EntryWriter interface {
	// Write inserts e and reports false when its event is already logged.
	Write(ctx context.Context, q postgres.Querier, e Entry) (bool, error)
}

type pgEntryWriter struct{}

// NewEntryWriter returns the activity_log writer.
func NewEntryWriter() EntryWriter { return pgEntryWriter{} }

func (pgEntryWriter) Write(ctx context.Context, q postgres.Querier, e Entry) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO activity_log (event_id, event_type, aggregate_type, aggregate_id, actor, title, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, string(e.EventType), e.AggregateType, e.AggregateID, e.Actor, e.Title, e.Description, e.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert activity %s: %w", e.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
