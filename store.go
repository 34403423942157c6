package smpp

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store is the shared key-value collaborator the SequenceAllocator and
// UnackedLedger use for cross-process bookkeeping. It names exactly the
// operation set the core touches; everything else about the backing store
// (persistence, clustering, eviction) is out of scope here.
type Store interface {
	// Incr atomically increments key and returns the new value, creating
	// it at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)
	// Get returns the integer value at key, or 0 if it does not exist.
	Get(ctx context.Context, key string) (int64, error)
	// SetNX sets key to val only if it is currently absent, reporting
	// whether the set happened.
	SetNX(ctx context.Context, key string, val int64) (bool, error)
	// TTL returns the remaining time to live for key, or a negative
	// duration if the key has no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Expire sets a time to live on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// LPush prepends val to the list at key.
	LPush(ctx context.Context, key string, val string) error
	// LPop removes and returns the head of the list at key. ok is false
	// if the list is empty.
	LPop(ctx context.Context, key string) (val string, ok bool, err error)
	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)
}

// RedisStore backs Store with a github.com/go-redis/redis/v8 client, the
// same pairing the rest of the retrieved SMPP+Redis stack uses.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// SetNX implements Store.
func (s *RedisStore) SetNX(ctx context.Context, key string, val int64) (bool, error) {
	return s.rdb.SetNX(ctx, key, val, 0).Result()
}

// TTL implements Store.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.rdb.TTL(ctx, key).Result()
}

// Expire implements Store.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// LPush implements Store.
func (s *RedisStore) LPush(ctx context.Context, key string, val string) error {
	return s.rdb.LPush(ctx, key, val).Err()
}

// LPop implements Store.
func (s *RedisStore) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.LPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// LLen implements Store.
func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.LLen(ctx, key).Result()
}
