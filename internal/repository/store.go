package repository

import (
	"context"
	"database/sql"
)

type sqlStore struct {
	db *sql.DB
}

// NewSQLStore returns a Store backed by a Postgres connection pool.
func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

// NewRepositories binds every repository to db, which may be a pool or a
// transaction.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Users:        NewUserRepository(db),
		Tasks:        NewTaskRepository(db),
		Responses:    NewResponseRepository(db),
		Dispatches:   NewDispatchRepository(db),
		Interactions: NewInteractionRepository(db),
		Outbox:       NewOutboxRepository(db),
	}
}

func (s *sqlStore) Repos() Repositories {
	return NewRepositories(s.db)
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return WithTx(ctx, s.db, func(tx DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}
