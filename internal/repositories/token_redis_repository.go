package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"bookstore/internal/models"
)

const tokenKeyPrefix = "auth:token:"

var _ TokenStore = (*RedisTokenStore)(nil)

// RedisTokenStore keeps issued tokens as Redis keys that expire with the token.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore creates a token store on top of an existing client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Save records an issued token with a TTL matching its expiry.
func (s *RedisTokenStore) Save(ctx context.Context, token models.AuthToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+token.ID, token.UserID, ttl).Err(); err != nil {
		return errors.Wrap(err, "save token")
	}
	return nil
}

// IsActive reports whether the token key still exists. Expiry is enforced by
// the key TTL, so now is not consulted.
func (s *RedisTokenStore) IsActive(ctx context.Context, id string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, tokenKeyPrefix+id).Result()
	if err != nil {
		return false, errors.Wrap(err, "check token")
	}
	return n > 0, nil
}

// Revoke deletes the token key.
func (s *RedisTokenStore) Revoke(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, tokenKeyPrefix+id).Err(); err != nil {
		return errors.Wrap(err, "revoke token")
	}
	return nil
}
