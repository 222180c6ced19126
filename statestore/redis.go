package statestore

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/c360/virtualsensor/errors"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL string

	// Prefix is prepended to every key, default "virtualsensor"
	Prefix string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisStore keeps state in Redis strings under "{prefix}:{namespace}:{key}".
// SET replaces a value atomically.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	namespace string
}

// NewRedisStore connects to Redis and scopes the store to namespace.
func NewRedisStore(ctx context.Context, opts RedisOptions, namespace string) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RedisStore", "NewRedisStore", "parse Redis URL")
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapTransient(err, "RedisStore", "NewRedisStore", "connect to Redis")
	}

	return NewRedisStoreFromClient(client, opts.Prefix, namespace), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix, namespace string) *RedisStore {
	if prefix == "" {
		prefix = "virtualsensor"
	}
	return &RedisStore{client: client, prefix: prefix, namespace: SanitizeNamespace(namespace)}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.namespace, key)
}

// OutputStream buffers the value and SETs it on Close.
func (s *RedisStore) OutputStream(ctx context.Context, key string) (Writer, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return newBufferedWriter(ctx, func(ctx context.Context, data []byte) error {
		if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
			return errors.WrapTransient(err, "RedisStore", "OutputStream", "set value")
		}
		return nil
	}), nil
}

// InputStream GETs the value for key.
func (s *RedisStore) InputStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "RedisStore", "InputStream", "get value")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "Delete", "delete value")
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
