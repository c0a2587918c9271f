package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// ResetTokenStore keeps password reset tokens in Redis with their TTL.
// Consuming a token deletes it atomically so it can be used exactly once.
type ResetTokenStore struct {
	client *redis.Client
}

func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

func (s *ResetTokenStore) SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(token), userID, ttl).Err()
}

func (s *ResetTokenStore) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrResetTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *ResetTokenStore) key(token string) string {
	return "reset:" + token
}
