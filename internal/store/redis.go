package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store implementation backed by Redis. Keys map directly
// to Redis keys; prefix listing uses SCAN with a MATCH pattern so large
// keyspaces are walked incrementally.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore for the given address and database.
// It verifies connectivity with a PING before returning.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping to %s: %v", ErrStorageFailure, addr, err)
	}

	return &RedisStore{client: client}, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStoreError("get", key, fmt.Errorf("%w: %v", ErrStorageFailure, err))
	}
	return value, nil
}

// Set stores value under key, replacing any existing value.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return NewStoreError("set", key, fmt.Errorf("%w: %v", ErrStorageFailure, err))
	}
	return nil
}

// Remove deletes the value under key. Removing a missing key is a no-op.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return NewStoreError("remove", key, fmt.Errorf("%w: %v", ErrStorageFailure, err))
	}
	return nil
}

// ListByPrefix returns all keys starting with prefix.
func (s *RedisStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, NewStoreError("list", prefix, fmt.Errorf("%w: %v", ErrStorageFailure, err))
	}

	return keys, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
