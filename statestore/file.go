package statestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/c360/virtualsensor/errors"
)

// FileStore keeps each key in its own file under root/namespace.
type FileStore struct {
	dir string
}

// NewFileStore creates the module directory under root.
func NewFileStore(root, namespace string) (*FileStore, error) {
	if root == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "FileStore", "NewFileStore", "root directory validation")
	}
	dir := filepath.Join(root, SanitizeNamespace(namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "FileStore", "NewFileStore", "create state directory")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding this module's state.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".state")
}

// OutputStream writes into a temp file that is renamed over the target on
// Close, so a crash or failed write leaves the previous value intact.
func (f *FileStore) OutputStream(_ context.Context, key string) (Writer, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(f.dir, key+"-*.tmp")
	if err != nil {
		return nil, errors.WrapFatal(err, "FileStore", "OutputStream", "create temp file")
	}
	return &fileWriter{tmp: tmp, final: f.path(key)}, nil
}

// InputStream opens the file for key.
func (f *FileStore) InputStream(_ context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "FileStore", "InputStream", "open state file")
	}
	return file, nil
}

// Delete removes the file for key.
func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.WrapTransient(err, "FileStore", "Delete", "remove state file")
	}
	return nil
}

type fileWriter struct {
	mu    sync.Mutex
	tmp   *os.File
	final string
	done  bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, errors.ErrStreamClosed
	}
	return w.tmp.Write(p)
}

// Close syncs the temp file and renames it into place.
func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return errors.ErrStreamClosed
	}
	w.done = true

	tmpPath := w.tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := w.tmp.Sync(); err != nil {
		w.tmp.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, w.final); err != nil {
		return fmt.Errorf("renaming state file into place: %w", err)
	}
	success = true

	// make the rename durable
	if dir, err := os.Open(filepath.Dir(w.final)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}

func (w *fileWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	return os.Remove(w.tmp.Name())
}
