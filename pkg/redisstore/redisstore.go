// Package redisstore keeps persisted client state in Redis so several
// terminals can share one session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jakechorley/skillconnect/pkg/db"
)

const keyPrefix = "skillconnect"

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store implements db.StateStore on top of a Redis client
type Store struct {
	client redis.Cmdable
	closer func() error
	env    string
}

// New connects to Redis and verifies the connection with a ping
func New(ctx context.Context, opts Options, env string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &Store{client: client, closer: client.Close, env: env}, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client redis.Cmdable, env string) *Store {
	return &Store{client: client, closer: func() error { return nil }, env: env}
}

// Key returns the namespaced redis key for a state key
func (s *Store) Key(key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.env, key)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", db.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %q from redis: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q in redis: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = s.Key(k)
	}

	if err := s.client.Del(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys from redis: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.closer()
}

var _ db.StateStore = (*Store)(nil)
