package main

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/virtualsensor/statestore"
)

// openStore builds the state store selected by cfg. The returned close
// function releases backend resources.
func openStore(ctx context.Context, cfg *Config, nc *nats.Conn, logger *slog.Logger) (statestore.Store, func(), error) {
	namespace := cfg.Sensor.ID
	noop := func() {}

	switch cfg.Store.Backend {
	case BackendMemory:
		logger.Warn("Using in-memory state store, description will not survive a restart")
		return statestore.NewMemoryStore(), noop, nil

	case BackendNATS:
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, nil, err
		}
		store, err := statestore.NewKVStore(ctx, js, cfg.Store.Bucket, namespace)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case BackendRedis:
		store, err := statestore.NewRedisStore(ctx, statestore.RedisOptions{
			URL:    cfg.Store.RedisURL,
			Prefix: cfg.Store.RedisPrefix,
		}, namespace)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close Redis client", "error", err)
			}
		}, nil

	default:
		store, err := statestore.NewFileStore(cfg.Store.Directory, namespace)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}
