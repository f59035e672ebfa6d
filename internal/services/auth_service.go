package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	broker_errors "dealbroker/pkg/errors"
)

const RoleOperator = "operator"

// AuthService issues and verifies operator tokens. Operators approve tasks
// and resolve disputed deals; parties never hold tokens.
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	return &AuthService{jwtSecret: []byte(secret), ttl: ttl, now: time.Now}
}

type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueOperatorToken signs a token naming operatorID as subject.
func (s *AuthService) IssueOperatorToken(operatorID string) (string, error) {
	if operatorID == "" {
		return "", broker_errors.ErrInvalidInput
	}
	now := s.now()
	claims := OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *AuthService) ParseOperatorToken(tokenString string) (OperatorClaims, error) {
	if tokenString == "" {
		return OperatorClaims{}, broker_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, broker_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return OperatorClaims{}, broker_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*OperatorClaims)
	if !ok || !parsed.Valid {
		return OperatorClaims{}, broker_errors.ErrUnauthorized
	}
	if claims.Role != RoleOperator {
		return OperatorClaims{}, broker_errors.ErrForbidden
	}
	return *claims, nil
}

// HTTPStatus maps service errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, broker_errors.ErrInvalidInput), errors.Is(err, broker_errors.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, broker_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, broker_errors.ErrForbidden),
		errors.Is(err, broker_errors.ErrNotParticipant),
		errors.Is(err, broker_errors.ErrProfileUnconfirmed):
		return http.StatusForbidden
	case errors.Is(err, broker_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, broker_errors.ErrAlreadyExists),
		errors.Is(err, broker_errors.ErrConflict),
		errors.Is(err, broker_errors.ErrDuplicateResponse),
		errors.Is(err, broker_errors.ErrTaskNotActive),
		errors.Is(err, broker_errors.ErrInvalidTransition),
		errors.Is(err, broker_errors.ErrFeedbackClosed),
		errors.Is(err, broker_errors.ErrInteractionNotIssue):
		return http.StatusConflict
	case errors.Is(err, broker_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode names domain errors for API clients.
func ErrorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{broker_errors.ErrTaskNotActive, "TASK_NOT_ACTIVE"},
		{broker_errors.ErrDuplicateResponse, "DUPLICATE_RESPONSE"},
		{broker_errors.ErrAmountMismatch, "AMOUNT_MISMATCH"},
		{broker_errors.ErrFeedbackClosed, "FEEDBACK_CLOSED"},
		{broker_errors.ErrInteractionNotIssue, "NOT_ISSUE"},
		{broker_errors.ErrNotParticipant, "NOT_PARTICIPANT"},
		{broker_errors.ErrProfileUnconfirmed, "PROFILE_UNCONFIRMED"},
		{broker_errors.ErrInvalidTransition, "INVALID_TRANSITION"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

type ctxKey string

var operatorIDKey ctxKey = "operator_id"

func WithOperatorContext(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, operatorID)
}

func OperatorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorIDKey).(string)
	return id, ok && id != ""
}
