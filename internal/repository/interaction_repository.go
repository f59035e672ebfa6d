package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/interaction"
	broker_errors "dealbroker/pkg/errors"
)

type interactionRepository struct {
	db DBTX
}

func NewInteractionRepository(db DBTX) InteractionRepository {
	return &interactionRepository{db: db}
}

const interactionColumns = `id, task_id, fulfiller_id, requester_id, status, from_requester, from_fulfiller,
        requester_text, fulfiller_text, postpone_count, next_check_at, override, created_at, updated_at`

func scanInteraction(row rowScanner) (interaction.Interaction, error) {
	var (
		i             interaction.Interaction
		fromRequester sql.NullString
		fromFulfiller sql.NullString
	)
	err := row.Scan(
		&i.ID,
		&i.TaskID,
		&i.FulfillerID,
		&i.RequesterID,
		&i.Status,
		&fromRequester,
		&fromFulfiller,
		&i.RequesterText,
		&i.FulfillerText,
		&i.PostponeCount,
		&i.NextCheckAt,
		&i.Override,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return i, err
	}
	i.FromRequester = outcomeFromNull(fromRequester)
	i.FromFulfiller = outcomeFromNull(fromFulfiller)
	return i, nil
}

func outcomeFromNull(s sql.NullString) *interaction.Outcome {
	if !s.Valid {
		return nil
	}
	o := interaction.Outcome(s.String)
	return &o
}

func outcomeToNull(o *interaction.Outcome) sql.NullString {
	if o == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*o), Valid: true}
}

func (r *interactionRepository) Create(ctx context.Context, i *interaction.Interaction) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO interactions (`+interactionColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    `,
		i.ID,
		i.TaskID,
		i.FulfillerID,
		i.RequesterID,
		i.Status,
		outcomeToNull(i.FromRequester),
		outcomeToNull(i.FromFulfiller),
		i.RequesterText,
		i.FulfillerText,
		i.PostponeCount,
		i.NextCheckAt,
		i.Override,
		i.CreatedAt,
		i.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return broker_errors.ErrAlreadyExists
	}
	return err
}

func (r *interactionRepository) GetByID(ctx context.Context, id uuid.UUID) (interaction.Interaction, error) {
	i, err := scanInteraction(r.db.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id = $1`, id))
	return i, notFound(err)
}

func (r *interactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (interaction.Interaction, error) {
	i, err := scanInteraction(r.db.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id = $1 FOR UPDATE`, id))
	return i, notFound(err)
}

func (r *interactionRepository) GetByParticipants(ctx context.Context, taskID, fulfillerID, requesterID uuid.UUID) (interaction.Interaction, error) {
	i, err := scanInteraction(r.db.QueryRowContext(ctx, `
        SELECT `+interactionColumns+`
        FROM interactions
        WHERE task_id = $1 AND fulfiller_id = $2 AND requester_id = $3
    `, taskID, fulfillerID, requesterID))
	return i, notFound(err)
}

func (r *interactionRepository) Update(ctx context.Context, i interaction.Interaction) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE interactions
        SET status = $2,
            from_requester = $3,
            from_fulfiller = $4,
            requester_text = $5,
            fulfiller_text = $6,
            postpone_count = $7,
            next_check_at = $8,
            override = $9,
            updated_at = $10
        WHERE id = $1
    `,
		i.ID,
		i.Status,
		outcomeToNull(i.FromRequester),
		outcomeToNull(i.FromFulfiller),
		i.RequesterText,
		i.FulfillerText,
		i.PostponeCount,
		i.NextCheckAt,
		i.Override,
		i.UpdatedAt,
	))
}

func (r *interactionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]interaction.Interaction, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+interactionColumns+`
        FROM interactions
        WHERE status = $1 AND next_check_at IS NOT NULL AND next_check_at <= $2
        ORDER BY next_check_at ASC
        LIMIT $3
    `, interaction.StatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []interaction.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, i)
	}
	return due, rows.Err()
}
