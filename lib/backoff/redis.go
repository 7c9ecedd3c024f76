package backoff

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the gate with a shared redis instance so that cooldown
// state is observed by every worker, not just the one that tripped it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) RedisStore {
	return RedisStore{client: client}
}

func (s RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s RedisStore) SetWithExpiry(ctx context.Context, key string, d time.Duration) error {
	return s.client.Set(ctx, key, "1", d).Err()
}
