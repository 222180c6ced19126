package statestore

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/virtualsensor/errors"
)

// DefaultKVBucket is the bucket used when none is configured.
const DefaultKVBucket = "virtualsensor_state"

// KVStore keeps state in a NATS JetStream key-value bucket. Keys are
// "{namespace}.{key}"; a KV put replaces the value atomically.
type KVStore struct {
	bucket    jetstream.KeyValue
	namespace string
	timeout   time.Duration
}

// NewKVStore opens (or creates) the bucket and scopes it to namespace.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket, namespace string) (*KVStore, error) {
	if js == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "KVStore", "NewKVStore", "jetstream validation")
	}
	if bucket == "" {
		bucket = DefaultKVBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Virtual sensor persisted state",
		History:     5, // keep a few revisions for manual recovery
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "NewKVStore", "create KV bucket")
	}

	return NewKVStoreFromBucket(kv, namespace), nil
}

// NewKVStoreFromBucket wraps an existing bucket.
func NewKVStoreFromBucket(kv jetstream.KeyValue, namespace string) *KVStore {
	return &KVStore{
		bucket:    kv,
		namespace: SanitizeNamespace(namespace),
		timeout:   5 * time.Second,
	}
}

func (s *KVStore) key(key string) string {
	return s.namespace + "." + key
}

// applyTimeout applies the configured timeout to the context if set
func (s *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// OutputStream buffers the value and puts it on Close.
func (s *KVStore) OutputStream(ctx context.Context, key string) (Writer, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return newBufferedWriter(ctx, func(ctx context.Context, data []byte) error {
		ctx, cancel := s.applyTimeout(ctx)
		defer cancel()
		if _, err := s.bucket.Put(ctx, s.key(key), data); err != nil {
			return errors.WrapTransient(err, "KVStore", "OutputStream", "put to KV")
		}
		return nil
	}), nil
}

// InputStream fetches the latest revision of key.
func (s *KVStore) InputStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := s.applyTimeout(ctx)
	defer cancel()

	entry, err := s.bucket.Get(ctx, s.key(key))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "KVStore", "InputStream", "get from KV")
	}
	return io.NopCloser(bytes.NewReader(entry.Value())), nil
}

// Delete places a delete marker for key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ctx, cancel := s.applyTimeout(ctx)
	defer cancel()

	if err := s.bucket.Delete(ctx, s.key(key)); err != nil && !stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return errors.WrapTransient(err, "KVStore", "Delete", "delete from KV")
	}
	return nil
}
