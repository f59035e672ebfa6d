package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"dealbroker/internal/domain/user"
)

// Cache key patterns:
// - user:ext:{external_id} - UserTTL, resolves chat callbacks to a user

// CacheConfig contains configuration for caching
type CacheConfig struct {
	UserTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{UserTTL: 5 * time.Minute}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	if config.UserTTL <= 0 {
		config.UserTTL = DefaultCacheConfig().UserTTL
	}
	return &CacheStore{
		client: client,
		config: config,
	}
}

// UserCache is the cached form of a user.
type UserCache struct {
	ID          uuid.UUID   `json:"id"`
	ExternalID  int64       `json:"external_id"`
	Username    string      `json:"username,omitempty"`
	Role        user.Role   `json:"role"`
	Status      user.Status `json:"status"`
	Confirmed   bool        `json:"confirmed"`
	ConfirmedAt *time.Time  `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func userKey(externalID int64) string {
	return fmt.Sprintf("user:ext:%d", externalID)
}

// GetUserByExternalID returns nil, nil on a cache miss.
func (c *CacheStore) GetUserByExternalID(ctx context.Context, externalID int64) (*user.User, error) {
	data, err := c.client.Get(ctx, userKey(externalID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached UserCache
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, err
	}
	u := user.User{
		ID:          cached.ID,
		ExternalID:  cached.ExternalID,
		Username:    cached.Username,
		Role:        cached.Role,
		Status:      cached.Status,
		Confirmed:   cached.Confirmed,
		ConfirmedAt: cached.ConfirmedAt,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}
	return &u, nil
}

func (c *CacheStore) SetUser(ctx context.Context, u user.User) error {
	data, err := json.Marshal(UserCache{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		Username:    u.Username,
		Role:        u.Role,
		Status:      u.Status,
		Confirmed:   u.Confirmed,
		ConfirmedAt: u.ConfirmedAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userKey(u.ExternalID), data, c.config.UserTTL).Err()
}

// InvalidateUser drops the cached copy after the profile changed.
func (c *CacheStore) InvalidateUser(ctx context.Context, u user.User) error {
	return c.client.Del(ctx, userKey(u.ExternalID)).Err()
}
