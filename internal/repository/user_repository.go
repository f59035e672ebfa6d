package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/user"
	broker_errors "dealbroker/pkg/errors"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, external_id, username, role, status, confirmed, confirmed_at, created_at, updated_at`

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Username,
		&u.Role,
		&u.Status,
		&u.Confirmed,
		&u.ConfirmedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		u.ID,
		u.ExternalID,
		u.Username,
		u.Role,
		u.Status,
		u.Confirmed,
		u.ConfirmedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return broker_errors.ErrAlreadyExists
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, notFound(err)
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID int64) (user.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	return u, notFound(err)
}

func (r *userRepository) SetConfirmed(ctx context.Context, id uuid.UUID, confirmed bool, at time.Time) error {
	var confirmedAt sql.NullTime
	if confirmed {
		confirmedAt = sql.NullTime{Time: at, Valid: true}
	}
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE users SET confirmed = $2, confirmed_at = $3, updated_at = $4 WHERE id = $1
    `, id, confirmed, confirmedAt, at))
}

func (r *userRepository) SetStatus(ctx context.Context, id uuid.UUID, status user.Status, at time.Time) error {
	return expectOne(r.db.ExecContext(ctx, `
        UPDATE users SET status = $2, updated_at = $3 WHERE id = $1
    `, id, status, at))
}

func (r *userRepository) ListEligibleFulfillers(ctx context.Context, ownerID uuid.UUID, limit int) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE confirmed
          AND role IN ($1, $2)
          AND status NOT IN ($3, $4)
          AND id <> $5
        ORDER BY confirmed_at ASC, id ASC
        LIMIT $6
    `, user.RoleFulfiller, user.RoleBoth, user.StatusBlocked, user.StatusPause, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
