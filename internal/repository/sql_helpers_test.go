package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	broker_errors "dealbroker/pkg/errors"
)

var errRollback = errors.New("connection reset during rollback")

// rollbackFailDriver hands out connections whose transactions cannot roll back.
type rollbackFailDriver struct{}

func (rollbackFailDriver) Open(string) (driver.Conn, error) { return rollbackFailConn{}, nil }

type rollbackFailConn struct{}

func (rollbackFailConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("not supported")
}
func (rollbackFailConn) Close() error              { return nil }
func (rollbackFailConn) Begin() (driver.Tx, error) { return rollbackFailTx{}, nil }

type rollbackFailTx struct{}

func (rollbackFailTx) Commit() error   { return nil }
func (rollbackFailTx) Rollback() error { return errRollback }

func init() {
	sql.Register("dealbroker-rollback-fail", rollbackFailDriver{})
}

func TestWithTxKeepsCauseWhenRollbackFails(t *testing.T) {
	db, err := sql.Open("dealbroker-rollback-fail", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = WithTx(context.Background(), db, func(DBTX) error {
		return broker_errors.ErrNotFound
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, broker_errors.ErrNotFound)
	assert.ErrorIs(t, err, errRollback)
}

func TestWithTxCommitsAndRejectsNilDB(t *testing.T) {
	db, err := sql.Open("dealbroker-rollback-fail", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, WithTx(context.Background(), db, func(DBTX) error { return nil }))
	assert.Error(t, WithTx(context.Background(), nil, func(DBTX) error { return nil }))
}
