package repository

import (
	"context"

	"github.com/google/uuid"

	"dealbroker/internal/domain/task"
	broker_errors "dealbroker/pkg/errors"
)

type responseRepository struct {
	db DBTX
}

func NewResponseRepository(db DBTX) ResponseRepository {
	return &responseRepository{db: db}
}

func (r *responseRepository) Create(ctx context.Context, resp *task.Response) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO task_responses (id, task_id, fulfiller_id, responded_at)
        VALUES ($1,$2,$3,$4)
    `, resp.ID, resp.TaskID, resp.FulfillerID, resp.RespondedAt)
	if isUniqueViolation(err) {
		return broker_errors.ErrDuplicateResponse
	}
	return err
}

func (r *responseRepository) Exists(ctx context.Context, taskID, fulfillerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (SELECT 1 FROM task_responses WHERE task_id = $1 AND fulfiller_id = $2)
    `, taskID, fulfillerID).Scan(&exists)
	return exists, err
}

func (r *responseRepository) CountByTask(ctx context.Context, taskID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_responses WHERE task_id = $1`, taskID).Scan(&count)
	return count, err
}
