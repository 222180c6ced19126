package virtualsensor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/statestore"
)

// SaveState writes the self-description to store under the configured
// state key. The write is all-or-nothing; any failure is fatal and names
// the sensor.
func (s *Sensor) SaveState(ctx context.Context, store statestore.Store) error {
	doc := s.desc.Snapshot()

	w, err := store.OutputStream(ctx, s.cfg.StateKey)
	if err != nil {
		return s.saveFailed(err, "open state stream")
	}
	if err := s.codec.Encode(w, doc); err != nil {
		_ = w.Abort()
		return s.saveFailed(err, "encode description")
	}
	if err := w.Close(); err != nil {
		return s.saveFailed(err, "commit description")
	}

	s.metrics.recordSave("success")
	s.logger.Info("Sensor state saved",
		"key", s.cfg.StateKey,
		"codec", s.codec.Name(),
		"outputs", len(doc.Outputs))
	return nil
}

func (s *Sensor) saveFailed(err error, action string) error {
	s.metrics.recordSave("error")
	s.noteError(err)
	s.logger.Error("Failed to save sensor state", "key", s.cfg.StateKey, "error", err)
	return errors.WrapFatal(fmt.Errorf("sensor %s: %w", s.cfg.ID, err), "Sensor", "SaveState", action)
}

// LoadState restores the self-description from store. A missing key
// leaves the sensor empty and is not an error. A document that cannot be
// decoded is a fatal error and leaves the sensor untouched.
//
// Every declared output keeps its name: outputs that were streams get
// their channel and template back, bare outputs only reserve the name for
// a matching structure registered later.
func (s *Sensor) LoadState(ctx context.Context, store statestore.Store) error {
	r, err := store.InputStream(ctx, s.cfg.StateKey)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			s.metrics.recordLoad("empty")
			s.logger.Debug("No persisted sensor state", "key", s.cfg.StateKey)
			return nil
		}
		return s.loadFailed(err, "open state stream")
	}
	defer r.Close()

	doc, err := s.codec.Decode(r)
	if err != nil {
		return s.loadFailed(err, "decode description")
	}

	s.desc.Revive(doc)

	s.mu.Lock()
	s.rebuildOutputHashesLocked()
	var created []*Output
	for _, d := range s.desc.Declared() {
		if d.Component == nil {
			s.logger.Warn("Declared output has no structure", "output", d.Name)
			continue
		}
		if d.Fingerprint != "" {
			if recomputed := fingerprint.Of(d.Component, nil).String(); recomputed != d.Fingerprint {
				s.logger.Warn("Recorded output fingerprint differs from recomputed one",
					"output", d.Name,
					"recorded", d.Fingerprint,
					"recomputed", recomputed)
			}
		}
		if !d.Wrapped {
			continue
		}
		if _, out := s.resolveTemplateLocked(d.Component, d.Encoding); out != nil {
			created = append(created, out)
		}
	}
	outputs := len(s.outputs)
	s.mu.Unlock()

	for _, out := range created {
		s.announceOutput(out, outputs)
	}

	s.metrics.recordLoad("success")
	s.logger.Info("Sensor state loaded",
		"key", s.cfg.StateKey,
		"outputs", outputs,
		"last_updated", s.desc.LastUpdated())
	return nil
}

func (s *Sensor) loadFailed(err error, action string) error {
	s.metrics.recordLoad("error")
	s.noteError(err)
	s.logger.Error("Failed to load sensor state", "key", s.cfg.StateKey, "error", err)
	return errors.WrapFatal(fmt.Errorf("sensor %s: %w", s.cfg.ID, err), "Sensor", "LoadState", action)
}

// Cleanup deletes the persisted state of the sensor.
func (s *Sensor) Cleanup(ctx context.Context, store statestore.Store) error {
	if err := store.Delete(ctx, s.cfg.StateKey); err != nil {
		s.noteError(err)
		return errors.WrapFatal(fmt.Errorf("sensor %s: %w", s.cfg.ID, err), "Sensor", "Cleanup", "delete state")
	}
	s.logger.Info("Sensor state deleted", "key", s.cfg.StateKey)
	return nil
}
