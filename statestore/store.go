// Package statestore provides byte-oriented persisted state for modules.
//
// A Store is scoped to one module (its namespace) and holds opaque values
// under logical keys. Writes go through an output stream that commits on
// Close and discards on Abort, so a reader never observes a half-written
// value:
//
//	w, err := store.OutputStream(ctx, "SensorDescription")
//	if err != nil { ... }
//	if err := encode(w); err != nil {
//	    w.Abort()
//	    return err
//	}
//	return w.Close() // atomic replace
//
// Reading a key that was never written returns errors.ErrKeyNotFound.
//
// Backends:
//   - FileStore: one file per key, written to a temp file and renamed
//   - MemoryStore: process-local map, for tests and embedded use
//   - KVStore: NATS JetStream key-value bucket
//   - RedisStore: Redis strings
package statestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/c360/virtualsensor/errors"
)

// Store is the persisted-state contract used by the virtual sensor.
// Implementations must be safe for concurrent use.
type Store interface {
	// OutputStream opens a writer for key. Nothing is visible to readers
	// until Close succeeds.
	OutputStream(ctx context.Context, key string) (Writer, error)

	// InputStream opens a reader for key, or returns errors.ErrKeyNotFound.
	InputStream(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Writer is an output stream with all-or-nothing semantics.
type Writer interface {
	io.WriteCloser
	// Abort discards everything written so far. Close after Abort fails.
	Abort() error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_\-=.]+$`)

// ValidateKey checks that key is usable by every backend: non-empty,
// no path separators, no traversal.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." {
		return errors.WrapInvalid(fmt.Errorf("invalid state key %q", key), "statestore", "ValidateKey", "key validation")
	}
	return nil
}

var unsafeNamespace = regexp.MustCompile(`[^A-Za-z0-9_\-=]`)

// SanitizeNamespace maps a module id such as "urn:x:sensor:1" onto a
// string safe for file names, NATS subjects and Redis keys.
func SanitizeNamespace(ns string) string {
	if ns == "" {
		return "default"
	}
	return unsafeNamespace.ReplaceAllString(ns, "_")
}

// bufferedWriter collects a value in memory and hands it to commit on
// Close. Backends with atomic single-key writes use it directly.
type bufferedWriter struct {
	ctx    context.Context
	buf    bytes.Buffer
	commit func(ctx context.Context, data []byte) error
	mu     sync.Mutex
	done   bool
}

func newBufferedWriter(ctx context.Context, commit func(context.Context, []byte) error) *bufferedWriter {
	return &bufferedWriter{ctx: ctx, commit: commit}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, errors.ErrStreamClosed
	}
	return w.buf.Write(p)
}

func (w *bufferedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return errors.ErrStreamClosed
	}
	w.done = true
	return w.commit(w.ctx, w.buf.Bytes())
}

func (w *bufferedWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.buf.Reset()
	return nil
}
