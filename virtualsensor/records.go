package virtualsensor

import (
	"context"
	"fmt"

	"github.com/c360/virtualsensor/component"
	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/swe"
)

// Publish delivers blocks to the output named by templateID. When the
// sensor is not started the blocks are dropped and nil is returned. An
// identifier that names no output is an invalid-input error wrapping
// errors.ErrUnknownTemplate.
//
// Subscribers run while the lifecycle lock is held for reading; they must
// not call Stop.
func (s *Sensor) Publish(ctx context.Context, templateID string, blocks ...swe.DataBlock) error {
	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()

	if s.state != component.StateStarted {
		s.metrics.recordDropped("not_started", len(blocks))
		s.logger.Debug("Dropping records, sensor not started",
			"template_id", templateID,
			"records", len(blocks),
			"state", s.state.String())
		return nil
	}

	name := OutputNameFromTemplateID(templateID)
	out, ok := s.Output(name)
	if !ok {
		err := errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownTemplate, templateID),
			"Sensor", "Publish", "output lookup")
		s.noteError(err)
		return err
	}

	s.logger.DebugContext(ctx, "New records received", "output", name, "records", len(blocks))

	var firstErr error
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return errors.WrapTransient(err, "Sensor", "Publish", "context check")
		}

		at := s.now()
		out.publishRecord(ctx, block, at)
		s.recordsPublished.Add(1)
		s.lastActivity.Store(at.UnixNano())
		s.metrics.recordPublished(name, 1)

		if s.publisher == nil {
			continue
		}
		rec := Record{
			SensorID:   s.cfg.ID,
			Output:     name,
			TemplateID: templateID,
			Timestamp:  at,
			Values:     block,
		}
		if err := s.publisher.PublishRecord(ctx, rec); err != nil {
			s.metrics.recordPublishError(name)
			s.noteError(err)
			s.logger.Warn("Failed to forward record", "output", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NewObservation accepts complete observations. They are dropped when the
// sensor is not started; otherwise the latest feature of interest among
// them becomes the sensor's current one.
func (s *Sensor) NewObservation(observations ...*swe.Observation) {
	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()

	if s.state != component.StateStarted {
		s.metrics.recordDropped("not_started", len(observations))
		return
	}

	for _, obs := range observations {
		if obs == nil || obs.FeatureOfInterest == nil {
			continue
		}
		s.mu.Lock()
		s.currentFoi = obs.FeatureOfInterest
		s.mu.Unlock()
	}
}

// NewFeatureOfInterest takes the feature of interest from an observation
// template submitted with templateID and announces it on the matching
// output. A nil observation is ignored.
func (s *Sensor) NewFeatureOfInterest(templateID string, obs *swe.Observation) error {
	if obs == nil {
		return nil
	}

	name := OutputNameFromTemplateID(templateID)
	out, ok := s.Output(name)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownTemplate, templateID),
			"Sensor", "NewFeatureOfInterest", "output lookup")
	}

	s.mu.Lock()
	s.currentFoi = obs.FeatureOfInterest
	s.mu.Unlock()

	if obs.FeatureOfInterest != nil {
		s.publishFeature(out, obs.FeatureOfInterest)
	}
	return nil
}

// AssociateFeatureOfInterest records foi as the current feature of the
// output called name and notifies its subscribers.
func (s *Sensor) AssociateFeatureOfInterest(name string, foi *swe.FeatureOfInterest) error {
	out, ok := s.Output(name)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownOutput, name),
			"Sensor", "AssociateFeatureOfInterest", "output lookup")
	}

	s.mu.Lock()
	s.currentFoi = foi
	s.mu.Unlock()

	s.publishFeature(out, foi)
	return nil
}

func (s *Sensor) publishFeature(out *Output, foi *swe.FeatureOfInterest) {
	out.publishFeature(foi, s.now())
	s.metrics.recordFeatureChange(out.Name())

	id := ""
	if foi != nil {
		id = foi.ID
	}
	s.logger.Debug("Feature of interest changed", "output", out.Name(), "feature", id)
}

// CurrentFeatureOfInterest returns the feature most recently associated
// with any output or observation.
func (s *Sensor) CurrentFeatureOfInterest() *swe.FeatureOfInterest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentFoi
}
