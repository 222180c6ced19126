package virtualsensor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/virtualsensor/errors"
	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/swe"
)

// TemplateSeparator separates the sensor id from the output name in a
// template identifier.
const TemplateSeparator = "#"

// TemplateID returns the identifier issued for templates of output name.
func (s *Sensor) TemplateID(name string) string {
	return s.cfg.ID + TemplateSeparator + name
}

// OutputNameFromTemplateID returns the output name encoded in a template
// identifier: everything after the last separator.
func OutputNameFromTemplateID(id string) string {
	return id[strings.LastIndex(id, TemplateSeparator)+1:]
}

// ResolveOutputName returns the name a channel for schema has or would
// get. A channel or declared output with the same structure keeps its
// name; otherwise a fresh "output{N}" is proposed, N being the channel
// count, skipping names already in use. Nothing is registered.
func (s *Sensor) ResolveOutputName(schema *swe.Component) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveOutputNameLocked(fingerprint.Of(schema, nil))
}

func (s *Sensor) resolveOutputNameLocked(channel fingerprint.Fingerprint) string {
	if name, ok := s.outputHashes[channel]; ok {
		return name
	}
	for n := len(s.outputs); ; n++ {
		name := fmt.Sprintf("output%d", n)
		if _, taken := s.outputs[name]; !taken && !s.desc.HasOutput(name) {
			return name
		}
	}
}

// ResolveTemplate returns the template identifier for schema and enc,
// creating the output channel the first time a structure is seen.
// Calling it again with an equal schema and encoding returns the same
// identifier and creates nothing.
func (s *Sensor) ResolveTemplate(schema *swe.Component, enc *swe.Encoding) (string, error) {
	if schema == nil {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Sensor", "ResolveTemplate", "schema check")
	}
	if err := schema.Validate(); err != nil {
		return "", errors.WrapInvalid(err, "Sensor", "ResolveTemplate", "schema validation")
	}
	if err := enc.Validate(); err != nil {
		return "", errors.WrapInvalid(err, "Sensor", "ResolveTemplate", "encoding validation")
	}

	s.mu.Lock()
	id, created := s.resolveTemplateLocked(schema, enc)
	outputs := len(s.outputs)
	s.mu.Unlock()

	if created != nil {
		s.announceOutput(created, outputs)
	}
	return id, nil
}

// resolveTemplateLocked runs the resolve-or-create sequence. The caller
// holds s.mu and announces the created output, if any, after unlocking.
func (s *Sensor) resolveTemplateLocked(schema *swe.Component, enc *swe.Encoding) (string, *Output) {
	template := fingerprint.Of(schema, enc)
	if id, ok := s.templateHashes[template]; ok {
		// the description may have been replaced since the first registration
		s.desc.Sync(s.templates[id], schema, enc)
		return id, nil
	}

	channel := fingerprint.Of(schema, nil)
	name := s.resolveOutputNameLocked(channel)

	var created *Output
	if _, exists := s.outputs[name]; !exists {
		created = newOutput(name, schema, enc)
		s.outputs[name] = created
		s.order = append(s.order, name)
	}
	s.outputHashes[channel] = name

	id := s.TemplateID(name)
	s.templateHashes[template] = id
	s.templates[id] = name
	s.desc.Sync(name, schema, enc)
	s.metrics.recordTemplate()

	s.logger.Debug("Result template registered",
		"template_id", id,
		"output", name,
		"new_output", created != nil)
	return id, created
}

func (s *Sensor) announceOutput(o *Output, total int) {
	s.metrics.recordOutputs(total)
	s.logger.Info("Output channel created", "output", o.Name(), "fingerprint", o.Fingerprint().String())
	ev := newEvent(EventOutputAdded, s.cfg.ID, s.now())
	ev.Output = o.Name()
	s.emit(ev)
}

// rebuildOutputHashesLocked maps every live channel and every declared
// output to its name. Declared outputs win, except over a live channel of
// another structure holding the same name.
func (s *Sensor) rebuildOutputHashesLocked() {
	hashes := make(map[fingerprint.Fingerprint]string, len(s.outputs))
	for name, o := range s.outputs {
		hashes[o.Fingerprint()] = name
	}
	for _, d := range s.desc.Declared() {
		if d.Component == nil {
			continue
		}
		declared := fingerprint.Of(d.Component, nil)
		if live, ok := s.outputs[d.Name]; ok && live.Fingerprint() != declared {
			s.logger.Warn("Declared output conflicts with a live channel, keeping the channel",
				"output", d.Name,
				"channel_fingerprint", live.Fingerprint().String(),
				"declared_fingerprint", declared.String())
			continue
		}
		hashes[declared] = d.Name
	}
	s.outputHashes = hashes
}

// TemplateIDs returns every issued template identifier, sorted.
func (s *Sensor) TemplateIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
