// Package description holds the self-description document of a virtual
// sensor and keeps its declared outputs in step with the sensor's output
// channels.
package description

import (
	"time"

	"github.com/c360/virtualsensor/swe"
)

// Document is the externally visible description of a virtual sensor. It is
// the only state persisted across restarts.
type Document struct {
	UniqueID    string           `json:"unique_id" yaml:"unique_id" cbor:"unique_id"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty" cbor:"name,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty" cbor:"description,omitempty"`
	ValidTime   []swe.TimePeriod `json:"valid_time,omitempty" yaml:"valid_time,omitempty" cbor:"valid_time,omitempty"`
	Outputs     []Output         `json:"outputs" yaml:"outputs" cbor:"outputs"`
}

// DataStream wraps a schema together with its encoding so the output can
// be rebuilt exactly after a restart.
type DataStream struct {
	ElementType *swe.Component `json:"element_type" yaml:"element_type" cbor:"element_type"`
	Encoding    *swe.Encoding  `json:"encoding,omitempty" yaml:"encoding,omitempty" cbor:"encoding,omitempty"`

	// Fingerprint is the hex channel fingerprint recorded when the stream
	// was created. Loaders compare it with a recomputed value.
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty" cbor:"fingerprint,omitempty"`
}

// DataInterface is the interface form found in imported capability
// descriptions: a data stream plus an optional interface parameters schema.
type DataInterface struct {
	Data       DataStream     `json:"data" yaml:"data" cbor:"data"`
	Parameters *swe.Component `json:"parameters,omitempty" yaml:"parameters,omitempty" cbor:"parameters,omitempty"`
}

// Output is one entry of the declared output list. Exactly one of
// Component, Stream and Interface is set.
type Output struct {
	Name      string         `json:"name" yaml:"name" cbor:"name"`
	Component *swe.Component `json:"component,omitempty" yaml:"component,omitempty" cbor:"component,omitempty"`
	Stream    *DataStream    `json:"stream,omitempty" yaml:"stream,omitempty" cbor:"stream,omitempty"`
	Interface *DataInterface `json:"interface,omitempty" yaml:"interface,omitempty" cbor:"interface,omitempty"`
}

// IsStream reports whether the entry already carries an encoding wrapper.
func (o *Output) IsStream() bool {
	return o.Stream != nil
}

// Resolve returns the schema and encoding declared by the entry. Bare
// entries have no encoding.
func (o *Output) Resolve() (*swe.Component, *swe.Encoding) {
	switch {
	case o.Stream != nil:
		return o.Stream.ElementType, o.Stream.Encoding
	case o.Interface != nil:
		return o.Interface.Data.ElementType, o.Interface.Data.Encoding
	default:
		return o.Component, nil
	}
}

// Wrapped reports whether the entry is a stream or an interface, i.e. it
// stands for a channel that existed at save time.
func (o *Output) Wrapped() bool {
	return o.Stream != nil || o.Interface != nil
}

// Clone returns a deep copy of the entry.
func (o Output) Clone() Output {
	cp := Output{Name: o.Name, Component: o.Component.Clone()}
	if o.Stream != nil {
		s := o.Stream.clone()
		cp.Stream = &s
	}
	if o.Interface != nil {
		cp.Interface = &DataInterface{
			Data:       o.Interface.Data.clone(),
			Parameters: o.Interface.Parameters.Clone(),
		}
	}
	return cp
}

func (s DataStream) clone() DataStream {
	return DataStream{
		ElementType: s.ElementType.Clone(),
		Encoding:    s.Encoding.Clone(),
		Fingerprint: s.Fingerprint,
	}
}

// NewDocument returns an empty description for the given unique id.
func NewDocument(uniqueID, name string) *Document {
	return &Document{UniqueID: uniqueID, Name: name, Outputs: []Output{}}
}

// Output returns the index of the output entry with the given name, or -1.
func (d *Document) Output(name string) int {
	for i := range d.Outputs {
		if d.Outputs[i].Name == name {
			return i
		}
	}
	return -1
}

// ValidFrom returns the begin instant of the first validity period.
func (d *Document) ValidFrom() (time.Time, bool) {
	if len(d.ValidTime) == 0 || d.ValidTime[0].Begin.IsZero() {
		return time.Time{}, false
	}
	return d.ValidTime[0].Begin, true
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.ValidTime = append([]swe.TimePeriod(nil), d.ValidTime...)
	cp.Outputs = make([]Output, len(d.Outputs))
	for i, o := range d.Outputs {
		cp.Outputs[i] = o.Clone()
	}
	return &cp
}
