package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces processed event ids in Redis
const DefaultRedisKeyPrefix = "line:webhook:"

// RedisStore is a ProcessedEventStore shared by every instance behind the
// same Redis, so a redelivery landing on another replica is still skipped.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store using client. Ids expire after ttl.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// MarkIfAbsent implements ProcessedEventStore with SET NX
func (s *RedisStore) MarkIfAbsent(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+id, time.Now().UnixMilli(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s in redis: %w", id, err)
	}
	return ok, nil
}
