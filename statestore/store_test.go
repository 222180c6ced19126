package statestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/virtualsensor/errors"
)

func writeValue(t *testing.T, s Store, key, value string) {
	t.Helper()
	w, err := s.OutputStream(context.Background(), key)
	require.NoError(t, err)
	_, err = io.WriteString(w, value)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readValue(t *testing.T, s Store, key string) string {
	t.Helper()
	r, err := s.InputStream(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.InputStream(ctx, "SensorDescription")
		assert.ErrorIs(t, err, errors.ErrKeyNotFound)
	})

	t.Run("write then read", func(t *testing.T) {
		s := newStore(t)
		writeValue(t, s, "SensorDescription", `{"name":"a"}`)
		assert.Equal(t, `{"name":"a"}`, readValue(t, s, "SensorDescription"))
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		s := newStore(t)
		writeValue(t, s, "SensorDescription", "first")
		writeValue(t, s, "SensorDescription", "second")
		assert.Equal(t, "second", readValue(t, s, "SensorDescription"))
	})

	t.Run("nothing visible before close", func(t *testing.T) {
		s := newStore(t)
		writeValue(t, s, "k", "old")

		w, err := s.OutputStream(ctx, "k")
		require.NoError(t, err)
		_, err = io.WriteString(w, "new")
		require.NoError(t, err)

		assert.Equal(t, "old", readValue(t, s, "k"))
		require.NoError(t, w.Close())
		assert.Equal(t, "new", readValue(t, s, "k"))
	})

	t.Run("abort keeps previous value", func(t *testing.T) {
		s := newStore(t)
		writeValue(t, s, "k", "old")

		w, err := s.OutputStream(ctx, "k")
		require.NoError(t, err)
		_, err = io.WriteString(w, "partial")
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		assert.Error(t, w.Close())
		assert.Equal(t, "old", readValue(t, s, "k"))
	})

	t.Run("write after close fails", func(t *testing.T) {
		s := newStore(t)
		w, err := s.OutputStream(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		_, err = w.Write([]byte("x"))
		assert.ErrorIs(t, err, errors.ErrStreamClosed)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		writeValue(t, s, "k", "v")
		require.NoError(t, s.Delete(ctx, "k"))
		_, err := s.InputStream(ctx, "k")
		assert.ErrorIs(t, err, errors.ErrKeyNotFound)

		// deleting again is fine
		assert.NoError(t, s.Delete(ctx, "k"))
	})

	t.Run("invalid key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.OutputStream(ctx, "../escape")
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(_ *testing.T) Store { return NewMemoryStore() })
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir(), "urn:test:sensor")
		require.NoError(t, err)
		return s
	})
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStoreFromClient(client, "", "urn:test:sensor")
	})
}

func TestFileStore_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "urn:osh:sensor:1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "urn_osh_sensor_1"), s.Dir())

	writeValue(t, s, "SensorDescription", "v")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "SensorDescription.state", entries[0].Name())
}

func TestFileStore_AbortRemovesTemp(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "ns")
	require.NoError(t, err)

	w, err := s.OutputStream(context.Background(), "k")
	require.NoError(t, err)
	_, err = io.WriteString(w, "junk")
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_MissingRoot(t *testing.T) {
	_, err := NewFileStore("", "ns")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStoreFromClient(client, "vs", "urn:a:b")
	writeValue(t, s, "SensorDescription", "payload")

	got, err := mr.Get("vs:urn_a_b:SensorDescription")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestNewRedisStore_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(context.Background(), RedisOptions{URL: "redis://" + mr.Addr()}, "ns")
	require.NoError(t, err)
	defer s.Close()

	writeValue(t, s, "k", "v")
	assert.Equal(t, "v", readValue(t, s, "k"))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{URL: "not a url"}, "ns")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"SensorDescription", true},
		{"state.v2", true},
		{"a-b_c=d", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{"a b", false},
		{strings.Repeat("x", 10), true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitizeNamespace(t *testing.T) {
	assert.Equal(t, "default", SanitizeNamespace(""))
	assert.Equal(t, "urn_osh_sensor_x", SanitizeNamespace("urn:osh:sensor:x"))
	assert.Equal(t, "a_b", SanitizeNamespace("a/b"))
	assert.Equal(t, "a_b", SanitizeNamespace("a.b"))
}
