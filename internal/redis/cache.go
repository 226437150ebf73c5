package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-relay/internal/domain/user"
	"campus-relay/internal/repository"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache key patterns:
// - user:{user_id} - 5m TTL, profile cache
//
// Subject titles are not cached: a deleted listing must drop out of the
// next escalation email.

// CacheConfig contains configuration for caching
type CacheConfig struct {
	UserTTL time.Duration
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		UserTTL: 5 * time.Minute,
	}
}

// UserCache is the cached projection of a profile.
type UserCache struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
}

// CachedDirectory is a read-through profile cache in front of the user
// directory. Cache failures fall through to the backing directory.
type CachedDirectory struct {
	client *goredis.Client
	config CacheConfig
	users  repository.UserDirectory
	log    *zap.Logger
}

func NewCachedDirectory(client *goredis.Client, config CacheConfig, users repository.UserDirectory, log *zap.Logger) *CachedDirectory {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedDirectory{client: client, config: config, users: users, log: log}
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func (c *CachedDirectory) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	data, err := c.client.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var cached UserCache
		if err := json.Unmarshal(data, &cached); err == nil {
			return user.Profile{ID: cached.ID, DisplayName: cached.DisplayName, Email: cached.Email}, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		c.log.Warn("profile cache read failed", zap.String("user_id", id.String()), zap.Error(err))
	}

	p, err := c.users.GetProfile(ctx, id)
	if err != nil {
		return user.Profile{}, err
	}
	payload, err := json.Marshal(UserCache{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email})
	if err == nil {
		if err := c.client.Set(ctx, userKey(id), payload, c.config.UserTTL).Err(); err != nil {
			c.log.Warn("profile cache write failed", zap.String("user_id", id.String()), zap.Error(err))
		}
	}
	return p, nil
}
