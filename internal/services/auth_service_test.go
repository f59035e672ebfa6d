package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	broker_errors "dealbroker/pkg/errors"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	token, err := auth.IssueOperatorToken("op-1")
	require.NoError(t, err)

	claims, err := auth.ParseOperatorToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestOperatorTokenRejections(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	_, err := auth.ParseOperatorToken("")
	assert.ErrorIs(t, err, broker_errors.ErrUnauthorized)

	other, err := NewAuthService("other", time.Hour).IssueOperatorToken("op-1")
	require.NoError(t, err)
	_, err = auth.ParseOperatorToken(other)
	assert.ErrorIs(t, err, broker_errors.ErrUnauthorized)

	expired := NewAuthService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.IssueOperatorToken("op-1")
	require.NoError(t, err)
	_, err = auth.ParseOperatorToken(old)
	assert.ErrorIs(t, err, broker_errors.ErrUnauthorized)

	party, err := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{Role: "requester"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = auth.ParseOperatorToken(party)
	assert.ErrorIs(t, err, broker_errors.ErrForbidden)
}

func TestHTTPStatusAndCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", broker_errors.ErrTaskNotActive), http.StatusConflict, "TASK_NOT_ACTIVE"},
		{broker_errors.ErrDuplicateResponse, http.StatusConflict, "DUPLICATE_RESPONSE"},
		{broker_errors.ErrAmountMismatch, http.StatusBadRequest, "AMOUNT_MISMATCH"},
		{broker_errors.ErrNotParticipant, http.StatusForbidden, "NOT_PARTICIPANT"},
		{broker_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{broker_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_REQUEST"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
}

func TestOperatorContext(t *testing.T) {
	_, ok := OperatorIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := OperatorIDFromContext(WithOperatorContext(context.Background(), "op-9"))
	assert.True(t, ok)
	assert.Equal(t, "op-9", id)
}
