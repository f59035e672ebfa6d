package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/outbox"
)

type outboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{db: db}
}

const outboxColumns = `id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, last_error, terminal, created_at, updated_at, processed_at`

func scanOutboxEvent(row rowScanner) (outbox.OutboxEvent, error) {
	var (
		event   outbox.OutboxEvent
		payload []byte
	)
	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.AggregateType,
		&event.AggregateID,
		&payload,
		&event.Status,
		&event.RetryCount,
		&event.LastError,
		&event.Terminal,
		&event.CreatedAt,
		&event.UpdatedAt,
		&event.ProcessedAt,
	)
	event.Payload = json.RawMessage(payload)
	return event, err
}

func (r *outboxRepository) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	payload := []byte(event.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO outbox_events (`+outboxColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `,
		event.ID,
		event.EventType,
		event.AggregateType,
		event.AggregateID,
		payload,
		event.Status,
		event.RetryCount,
		event.LastError,
		event.Terminal,
		event.CreatedAt,
		event.UpdatedAt,
		event.ProcessedAt,
	)
	return err
}

func (r *outboxRepository) GetByID(ctx context.Context, id uuid.UUID) (outbox.OutboxEvent, error) {
	event, err := scanOutboxEvent(r.db.QueryRowContext(ctx, `SELECT `+outboxColumns+` FROM outbox_events WHERE id = $1`, id))
	return event, notFound(err)
}

// ClaimBatch locks candidate rows with SKIP LOCKED so concurrent drainers
// never claim the same event.
func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]outbox.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
        UPDATE outbox_events
        SET status = $1, updated_at = $2
        WHERE id IN (
            SELECT id FROM outbox_events
            WHERE status = $3
               OR (status = $4 AND NOT terminal)
            ORDER BY created_at ASC
            LIMIT $5
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+outboxColumns,
		outbox.StatusProcessing, now, outbox.StatusPending, outbox.StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.OutboxEvent
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $2, processed_at = $3, updated_at = $3, last_error = ''
        WHERE id = $1 AND status = $4
    `, id, outbox.StatusPublished, at, outbox.StatusProcessing))
}

func (r *outboxRepository) MarkSkipped(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $2, processed_at = $3, updated_at = $3, last_error = $4
        WHERE id = $1 AND status = $5
    `, id, outbox.StatusPublished, at, reason, outbox.StatusProcessing))
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string, terminal bool, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $2, retry_count = $3, last_error = $4, terminal = $5, updated_at = $6
        WHERE id = $1 AND status = $7
    `, id, outbox.StatusFailed, retryCount, lastError, terminal, at, outbox.StatusProcessing))
}

func (r *outboxRepository) ReleaseStuck(ctx context.Context, cutoff time.Time, maxRetries int, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $1,
            retry_count = retry_count + 1,
            terminal = retry_count + 1 >= $2,
            last_error = 'processing timed out',
            updated_at = $3
        WHERE status = $4 AND updated_at < $5
    `, outbox.StatusFailed, maxRetries, at, outbox.StatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
