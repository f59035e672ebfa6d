package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealbroker/internal/domain/user"
	"dealbroker/internal/repository"
	broker_errors "dealbroker/pkg/errors"
)

// UserCache speeds up resolving chat ids on button presses. Get returns nil
// on a miss.
type UserCache interface {
	GetUserByExternalID(ctx context.Context, externalID int64) (*user.User, error)
	SetUser(ctx context.Context, u user.User) error
	InvalidateUser(ctx context.Context, u user.User) error
}

type UserService struct {
	repo  repository.UserRepository
	cache UserCache
	now   func() time.Time
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

// WithCache enables the external id cache. Cache errors fall through to the
// repository.
func (s *UserService) WithCache(cache UserCache) *UserService {
	s.cache = cache
	return s
}

type RegisterUserInput struct {
	ExternalID int64
	Username   string
	Role       user.Role
}

func (s *UserService) Register(ctx context.Context, in RegisterUserInput) (user.User, error) {
	switch in.Role {
	case user.RoleRequester, user.RoleFulfiller, user.RoleBoth:
	default:
		return user.User{}, fmt.Errorf("role %q: %w", in.Role, broker_errors.ErrInvalidInput)
	}
	if in.ExternalID == 0 {
		return user.User{}, fmt.Errorf("external id is required: %w", broker_errors.ErrInvalidInput)
	}

	now := s.now()
	u := user.User{
		ID:         uuid.New(),
		ExternalID: in.ExternalID,
		Username:   strings.TrimPrefix(strings.TrimSpace(in.Username), "@"),
		Role:       in.Role,
		Status:     user.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByExternalID(ctx context.Context, externalID int64) (user.User, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetUserByExternalID(ctx, externalID); err == nil && cached != nil {
			return *cached, nil
		}
	}
	u, err := s.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return user.User{}, err
	}
	if s.cache != nil {
		_ = s.cache.SetUser(ctx, u)
	}
	return u, nil
}

func (s *UserService) refreshed(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateUser(ctx, u)
	}
	return u, nil
}

// SetVerification records the outcome of the external profile verification.
// Only confirmed fulfillers receive offers.
func (s *UserService) SetVerification(ctx context.Context, id uuid.UUID, confirmed bool) (user.User, error) {
	if err := s.repo.SetConfirmed(ctx, id, confirmed, s.now()); err != nil {
		return user.User{}, err
	}
	return s.refreshed(ctx, id)
}

func (s *UserService) SetStatus(ctx context.Context, id uuid.UUID, status user.Status) (user.User, error) {
	switch status {
	case user.StatusNew, user.StatusActive, user.StatusPause, user.StatusBlocked:
	default:
		return user.User{}, fmt.Errorf("status %q: %w", status, broker_errors.ErrInvalidInput)
	}
	if err := s.repo.SetStatus(ctx, id, status, s.now()); err != nil {
		return user.User{}, err
	}
	return s.refreshed(ctx, id)
}
