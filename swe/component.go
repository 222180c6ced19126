// Package swe holds the data model shared by the virtual sensor: record
// schemas, wire encodings, data blocks and features of interest.
package swe

import (
	"fmt"
	"strings"
)

// Kind identifies the structural kind of a schema node.
type Kind string

// Aggregate kinds carry child fields; scalar kinds carry values.
const (
	KindRecord   Kind = "record"
	KindChoice   Kind = "choice"
	KindVector   Kind = "vector"
	KindArray    Kind = "array"
	KindQuantity Kind = "quantity"
	KindCount    Kind = "count"
	KindBoolean  Kind = "boolean"
	KindCategory Kind = "category"
	KindText     Kind = "text"
	KindTime     Kind = "time"
)

// IsScalar reports whether nodes of this kind hold a single value.
func (k Kind) IsScalar() bool {
	switch k {
	case KindRecord, KindChoice, KindVector, KindArray:
		return false
	default:
		return true
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRecord, KindChoice, KindVector, KindArray,
		KindQuantity, KindCount, KindBoolean, KindCategory, KindText, KindTime:
		return true
	}
	return false
}

// Component is a node of a record schema. The root's own name carries no
// identity; names of descendants do.
type Component struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty" cbor:"name,omitempty"`
	Kind       Kind   `json:"kind" yaml:"kind" cbor:"kind"`
	Definition string `json:"definition,omitempty" yaml:"definition,omitempty" cbor:"definition,omitempty"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty" cbor:"label,omitempty"`
	UOM        string `json:"uom,omitempty" yaml:"uom,omitempty" cbor:"uom,omitempty"`

	// Fields lists the children of record, choice and vector nodes in
	// declaration order.
	Fields []*Component `json:"fields,omitempty" yaml:"fields,omitempty" cbor:"fields,omitempty"`

	// ElementType is the repeated element of an array node.
	ElementType  *Component `json:"element_type,omitempty" yaml:"element_type,omitempty" cbor:"element_type,omitempty"`
	ElementCount int        `json:"element_count,omitempty" yaml:"element_count,omitempty" cbor:"element_count,omitempty"`
}

// Record builds a record node.
func Record(name string, fields ...*Component) *Component {
	return &Component{Name: name, Kind: KindRecord, Fields: fields}
}

// Quantity builds a quantity node with a definition URI and unit.
func Quantity(name, definition, uom string) *Component {
	return &Component{Name: name, Kind: KindQuantity, Definition: definition, UOM: uom}
}

// Scalar builds a scalar node of the given kind.
func Scalar(name string, kind Kind, definition string) *Component {
	return &Component{Name: name, Kind: kind, Definition: definition}
}

// Array builds an array node around an element type.
func Array(name string, element *Component, count int) *Component {
	return &Component{Name: name, Kind: KindArray, ElementType: element, ElementCount: count}
}

// Children returns the direct children in declaration order.
func (c *Component) Children() []*Component {
	if c == nil {
		return nil
	}
	if c.Kind == KindArray {
		if c.ElementType == nil {
			return nil
		}
		return []*Component{c.ElementType}
	}
	return c.Fields
}

// Walk visits c and its descendants depth-first in declaration order.
// depth is 0 for c itself. Returning false from fn stops the walk.
func (c *Component) Walk(fn func(node *Component, depth int) bool) {
	c.walk(0, fn)
}

func (c *Component) walk(depth int, fn func(*Component, int) bool) bool {
	if c == nil {
		return true
	}
	if !fn(c, depth) {
		return false
	}
	for _, child := range c.Children() {
		if !child.walk(depth+1, fn) {
			return false
		}
	}
	return true
}

// Field returns the direct child with the given name.
func (c *Component) Field(name string) (*Component, bool) {
	for _, f := range c.Children() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Path resolves a "/"-separated field reference relative to c, as used by
// binary encoding members. A leading slash is ignored.
func (c *Component) Path(ref string) (*Component, bool) {
	node := c
	for _, part := range strings.Split(strings.Trim(ref, "/"), "/") {
		if part == "" {
			continue
		}
		next, ok := node.Field(part)
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, node != nil
}

// ScalarCount returns the number of scalar leaves, i.e. the length of a
// data block for fixed-size schemas.
func (c *Component) ScalarCount() int {
	n := 0
	c.Walk(func(node *Component, _ int) bool {
		if node.Kind.IsScalar() {
			n++
		}
		return true
	})
	return n
}

// Clone returns a deep copy of c.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Fields != nil {
		cp.Fields = make([]*Component, len(c.Fields))
		for i, f := range c.Fields {
			cp.Fields[i] = f.Clone()
		}
	}
	cp.ElementType = c.ElementType.Clone()
	return &cp
}

// Validate checks that every node has a known kind, aggregates have
// named children, and scalars have no children.
func (c *Component) Validate() error {
	if c == nil {
		return fmt.Errorf("schema is nil")
	}
	var err error
	c.Walk(func(node *Component, depth int) bool {
		if !node.Kind.Valid() {
			err = fmt.Errorf("field %q: unknown kind %q", node.Name, node.Kind)
			return false
		}
		if node.Kind.IsScalar() && (len(node.Fields) > 0 || node.ElementType != nil) {
			err = fmt.Errorf("field %q: scalar %s cannot have children", node.Name, node.Kind)
			return false
		}
		if node.Kind == KindArray && node.ElementType == nil {
			err = fmt.Errorf("field %q: array without element type", node.Name)
			return false
		}
		if depth > 0 && node.Name == "" {
			err = fmt.Errorf("unnamed field of kind %s at depth %d", node.Kind, depth)
			return false
		}
		if hasControl(node.Name) || hasControl(node.Definition) {
			err = fmt.Errorf("field %q: name or definition contains control characters", node.Name)
			return false
		}
		return true
	})
	return err
}

// hasControl reports whether s contains an ASCII control character.
func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}
