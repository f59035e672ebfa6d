package repository

import (
	"context"

	"github.com/google/uuid"

	"dealbroker/internal/domain/task"
)

type dispatchRepository struct {
	db DBTX
}

func NewDispatchRepository(db DBTX) DispatchRepository {
	return &dispatchRepository{db: db}
}

func (r *dispatchRepository) MarkSent(ctx context.Context, d task.Dispatch) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO offer_dispatches (task_id, fulfiller_id, sent_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (task_id, fulfiller_id) DO NOTHING
    `, d.TaskID, d.FulfillerID, d.SentAt)
	return err
}

func (r *dispatchRepository) ListSent(ctx context.Context, taskID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fulfiller_id FROM offer_dispatches WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sent := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sent[id] = true
	}
	return sent, rows.Err()
}
