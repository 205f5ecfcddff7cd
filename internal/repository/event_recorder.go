package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"warehouse-notify/internal/domain"
)

const (
	RelayPending   = "pending"
	RelayPublished = "published"
)

// EventRecorder persists appended domain events and tracks which still await
// relay to the event stream. The table is append-only; relay bookkeeping is
// the only mutation.
type EventRecorder struct {
	db *pgxpool.Pool
}

func NewEventRecorder(db *pgxpool.Pool) *EventRecorder {
	return &EventRecorder{db: db}
}

func (r *EventRecorder) RecordEvent(ctx context.Context, evt domain.DomainEvent) error {
	query := `
		INSERT INTO domain_events (
			id, type, aggregate_id, aggregate_type, version, payload, metadata,
			occurred_at, correlation_id, causation_id, relay_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
	`

	_, err := r.db.Exec(ctx, query,
		evt.ID, evt.Type, evt.AggregateID, evt.AggregateType, evt.Version,
		evt.Payload, evt.Metadata, evt.OccurredAt, evt.CorrelationID,
		evt.CausationID, RelayPending,
	)
	return err
}

// ClaimUnrelayed picks up to limit pending rows for the relay worker,
// oldest first. Overlapping ticks may pick the same rows; the conditional
// MarkRelayed and downstream dedupe on event id keep that harmless.
func (r *EventRecorder) ClaimUnrelayed(ctx context.Context, limit int) ([]domain.DomainEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, type, aggregate_id, aggregate_type, version, payload, metadata,
		       occurred_at, COALESCE(correlation_id, ''), COALESCE(causation_id, '')
		FROM domain_events
		WHERE relay_status = $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, RelayPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DomainEvent
	for rows.Next() {
		var e domain.DomainEvent
		if err := rows.Scan(
			&e.ID, &e.Type, &e.AggregateID, &e.AggregateType, &e.Version,
			&e.Payload, &e.Metadata, &e.OccurredAt, &e.CorrelationID, &e.CausationID,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventRecorder) MarkRelayed(ctx context.Context, eventID string) error {
	query := `
		UPDATE domain_events
		SET relay_status = $2, relayed_at = now()
		WHERE id = $1 AND relay_status = $3
	`

	_, err := r.db.Exec(ctx, query, eventID, RelayPublished, RelayPending)
	return err
}
