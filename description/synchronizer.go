package description

import (
	"sync"
	"time"

	"github.com/c360/virtualsensor/fingerprint"
	"github.com/c360/virtualsensor/swe"
)

// ChangeListener is told when the description is replaced. It is optional.
type ChangeListener interface {
	DescriptionChanged(doc *Document, at time.Time)
}

// Declared is an output entry as seen by the template registry: a name and
// the schema and encoding it declares.
type Declared struct {
	Name        string
	Component   *swe.Component
	Encoding    *swe.Encoding
	Wrapped     bool
	Fingerprint string
}

// Synchronizer owns the description document and is the only place that
// reads or mutates its output list. It is safe for concurrent use.
type Synchronizer struct {
	mu          sync.RWMutex
	doc         *Document
	lastUpdated time.Time
	listener    ChangeListener
	now         func() time.Time
}

// NewSynchronizer creates a synchronizer around an empty document.
func NewSynchronizer(uniqueID, name string, listener ChangeListener) *Synchronizer {
	return &Synchronizer{
		doc:      NewDocument(uniqueID, name),
		listener: listener,
		now:      time.Now,
	}
}

// SetListener replaces the change listener. Passing nil detaches it.
func (s *Synchronizer) SetListener(listener ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
}

// Sync makes sure the output list has a stream entry for name. Missing
// entries are added and bare entries are promoted to a stream carrying
// schema and encoding. An existing stream entry is left untouched.
// It reports whether the document changed.
func (s *Synchronizer) Sync(name string, schema *swe.Component, enc *swe.Encoding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.doc.Output(name)
	if idx >= 0 && s.doc.Outputs[idx].IsStream() {
		return false
	}

	elem := schema.Clone()
	elem.Name = name
	stream := &DataStream{
		ElementType: elem,
		Encoding:    enc.Clone(),
		Fingerprint: fingerprint.Of(schema, nil).String(),
	}

	if idx < 0 {
		s.doc.Outputs = append(s.doc.Outputs, Output{Name: name, Stream: stream})
	} else {
		s.doc.Outputs[idx] = Output{Name: name, Stream: stream}
	}
	return true
}

// SetUniqueIdentifier sets the document's unique id.
func (s *Synchronizer) SetUniqueIdentifier(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.UniqueID = id
}

// UniqueIdentifier returns the document's unique id.
func (s *Synchronizer) UniqueIdentifier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.UniqueID
}

// Name returns the document's name.
func (s *Synchronizer) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Name
}

// Replace installs a new document supplied by a client and notifies the
// listener.
func (s *Synchronizer) Replace(doc *Document) {
	s.mu.Lock()
	s.install(doc)
	s.lastUpdated = s.now()
	listener, at, snapshot := s.listener, s.lastUpdated, s.doc.Clone()
	s.mu.Unlock()

	if listener != nil {
		listener.DescriptionChanged(snapshot, at)
	}
}

// Revive installs a document recovered from storage without notifying the
// listener. The last-updated time comes from the first validity period
// when present.
func (s *Synchronizer) Revive(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.install(doc)
	if begin, ok := s.doc.ValidFrom(); ok {
		s.lastUpdated = begin
	} else {
		s.lastUpdated = s.now()
	}
}

func (s *Synchronizer) install(doc *Document) {
	if doc == nil {
		doc = NewDocument(s.doc.UniqueID, s.doc.Name)
	}
	s.doc = doc.Clone()
	if s.doc.Outputs == nil {
		s.doc.Outputs = []Output{}
	}
}

// Declared returns copies of every declared output in document order.
func (s *Synchronizer) Declared() []Declared {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Declared, 0, len(s.doc.Outputs))
	for i := range s.doc.Outputs {
		o := &s.doc.Outputs[i]
		comp, enc := o.Resolve()
		d := Declared{
			Name:      o.Name,
			Component: comp.Clone(),
			Encoding:  enc.Clone(),
			Wrapped:   o.Wrapped(),
		}
		if o.Stream != nil {
			d.Fingerprint = o.Stream.Fingerprint
		}
		out = append(out, d)
	}
	return out
}

// HasOutput reports whether an entry with the given name exists.
func (s *Synchronizer) HasOutput(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Output(name) >= 0
}

// Snapshot returns a deep copy of the current document.
func (s *Synchronizer) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// LastUpdated returns when the description last changed.
func (s *Synchronizer) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}
