package repository

import (
	"context"

	"github.com/google/uuid"

	"dealbroker/internal/domain/task"
)

type taskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, price, slots_needed, status, created_at, updated_at, completed_at`

func scanTask(row rowScanner) (task.Task, error) {
	var t task.Task
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.Price,
		&t.SlotsNeeded,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	return t, err
}

func (r *taskRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO tasks (`+taskColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `,
		t.ID,
		t.OwnerID,
		t.Title,
		t.Description,
		t.Price,
		t.SlotsNeeded,
		t.Status,
		t.CreatedAt,
		t.UpdatedAt,
		t.CompletedAt,
	)
	return err
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	return t, notFound(err)
}

func (r *taskRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (task.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	return t, notFound(err)
}

func (r *taskRepository) UpdateStatus(ctx context.Context, t task.Task) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE tasks SET status = $2, completed_at = $3, updated_at = $4 WHERE id = $1
    `, t.ID, t.Status, t.CompletedAt, t.UpdatedAt))
}
