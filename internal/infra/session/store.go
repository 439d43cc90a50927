// Package session holds the two stores consulted on the authentication hot
// path: the per-user refresh-token set and the access-token blacklist, the
// latter guarded by a circuit breaker and a bounded local cache.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the backing key-value surface the session stores need. Related
// mutations (set add + TTL refresh) go through a pipeline so a partial write
// cannot leave a set without an expiry.
type Store interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error

	SetAdd(ctx context.Context, key, member string, ttl time.Duration) error
	SetRemove(ctx context.Context, key, member string) error
	SetIsMember(ctx context.Context, key, member string) (bool, error)
	SetCard(ctx context.Context, key string) (int64, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
}

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, member)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *redisStore) SetRemove(ctx context.Context, key, member string) error {
	return s.client.SRem(ctx, key, member).Err()
}

func (s *redisStore) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	return s.client.SIsMember(ctx, key, member).Result()
}

func (s *redisStore) SetCard(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

func (s *redisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}
