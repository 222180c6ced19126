// Package codec serializes sensor description documents to and from byte
// streams. JSON is the default; CBOR and YAML are available for stores
// that favour compactness or readability.
package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/c360/virtualsensor/description"
)

// Codec encodes and decodes description documents.
type Codec interface {
	Name() string
	Encode(w io.Writer, doc *description.Document) error
	Decode(r io.Reader) (*description.Document, error)
}

// Codec names accepted by ByName.
const (
	NameJSON = "json"
	NameCBOR = "cbor"
	NameYAML = "yaml"
)

// ByName returns the codec registered under name. An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", NameJSON:
		return JSON{}, nil
	case NameCBOR:
		return CBOR{}, nil
	case NameYAML:
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown description codec %q", name)
	}
}

// JSON encodes documents as indented JSON.
type JSON struct{}

// Name returns "json".
func (JSON) Name() string { return NameJSON }

// Encode writes doc as JSON.
func (JSON) Encode(w io.Writer, doc *description.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a JSON document.
func (JSON) Decode(r io.Reader) (*description.Document, error) {
	var doc description.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// encMode uses Core Deterministic Encoding so the same document always
// produces the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// geometry and record values decode into JSON-compatible maps
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBOR encodes documents as deterministic CBOR.
type CBOR struct{}

// Name returns "cbor".
func (CBOR) Name() string { return NameCBOR }

// Encode writes doc as CBOR.
func (CBOR) Encode(w io.Writer, doc *description.Document) error {
	return encMode.NewEncoder(w).Encode(doc)
}

// Decode reads a CBOR document.
func (CBOR) Decode(r io.Reader) (*description.Document, error) {
	var doc description.Document
	if err := decMode.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// YAML encodes documents as YAML.
type YAML struct{}

// Name returns "yaml".
func (YAML) Name() string { return NameYAML }

// Encode writes doc as YAML.
func (YAML) Encode(w io.Writer, doc *description.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Decode reads a YAML document.
func (YAML) Decode(r io.Reader) (*description.Document, error) {
	var doc description.Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
