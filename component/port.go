package component

import (
	"encoding/json"
	"fmt"

	"github.com/c360/virtualsensor/errors"
)

// Direction of data through a port, seen from the component.
type Direction string

// Port directions.
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port is one input or output a component exposes for discovery.
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable is the transport-specific half of a Port.
type Portable interface {
	// ResourceID names the underlying resource for conflict detection.
	ResourceID() string
	// IsExclusive reports whether only one component may use the resource.
	IsExclusive() bool
	Type() string
}

// NATSPort is a NATS subject records or events are published on.
type NATSPort struct {
	Subject string `json:"subject"`
}

func (n NATSPort) ResourceID() string { return "nats:" + n.Subject }
func (n NATSPort) IsExclusive() bool  { return false }
func (n NATSPort) Type() string       { return "nats" }

// StatePort is where a component persists its state. Backend is one of
// file, memory, nats or redis; Location is the directory, bucket or key
// prefix inside it.
type StatePort struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Key      string `json:"key"`
}

func (s StatePort) ResourceID() string {
	return fmt.Sprintf("state:%s:%s/%s", s.Backend, s.Location, s.Key)
}

// IsExclusive is true: a second writer would overwrite the first.
func (s StatePort) IsExclusive() bool { return true }
func (s StatePort) Type() string      { return "state" }

// portConfigs decodes the data half of a tagged port config.
var portConfigs = map[string]func(json.RawMessage) (Portable, error){
	"nats": func(raw json.RawMessage) (Portable, error) {
		var p NATSPort
		err := json.Unmarshal(raw, &p)
		return p, err
	},
	"state": func(raw json.RawMessage) (Portable, error) {
		var p StatePort
		err := json.Unmarshal(raw, &p)
		return p, err
	},
}

// taggedConfig is the wire form of Port.Config.
type taggedConfig struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// portFields has Port's fields without its methods.
type portFields Port

// MarshalJSON writes Config as {"type": ..., "data": ...}.
func (p Port) MarshalJSON() ([]byte, error) {
	out := struct {
		portFields
		Config *taggedConfig `json:"config,omitempty"`
	}{portFields: portFields(p)}

	if p.Config != nil {
		data, err := json.Marshal(p.Config)
		if err != nil {
			return nil, errors.Wrap(err, "Port", "MarshalJSON", "config encoding")
		}
		out.Config = &taggedConfig{Type: p.Config.Type(), Data: data}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores Config from its type tag. An unknown tag is an
// invalid-input error.
func (p *Port) UnmarshalJSON(data []byte) error {
	in := struct {
		*portFields
		Config *taggedConfig `json:"config"`
	}{portFields: (*portFields)(p)}

	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Config = nil
	if in.Config == nil {
		return nil
	}

	decode, ok := portConfigs[in.Config.Type]
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("unknown port config type %q", in.Config.Type),
			"Port", "UnmarshalJSON", "config type")
	}
	cfg, err := decode(in.Config.Data)
	if err != nil {
		return errors.Wrap(err, "Port", "UnmarshalJSON", in.Config.Type+" config decoding")
	}
	p.Config = cfg
	return nil
}
