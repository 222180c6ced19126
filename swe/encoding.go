package swe

import "fmt"

// EncodingKind identifies the wire encoding family. A nil *Encoding means
// the encoding is unspecified.
type EncodingKind string

// Supported encoding families
const (
	EncodingText   EncodingKind = "text"
	EncodingBinary EncodingKind = "binary"
	EncodingJSON   EncodingKind = "json"
	EncodingXML    EncodingKind = "xml"
)

// MemberKind distinguishes binary encoding members.
type MemberKind string

// Binary members either describe one scalar or a whole compressed/encrypted block.
const (
	MemberComponent MemberKind = "component"
	MemberBlock     MemberKind = "block"
)

// BinaryMember describes how one schema field is laid out in a binary
// encoding. Ref points at the field, e.g. "/temperature".
type BinaryMember struct {
	Kind MemberKind `json:"kind" yaml:"kind" cbor:"kind"`
	Ref  string     `json:"ref" yaml:"ref" cbor:"ref"`

	// DataType is the primitive type of a component member, e.g. "float32".
	DataType string `json:"data_type,omitempty" yaml:"data_type,omitempty" cbor:"data_type,omitempty"`

	// Compression and Encryption apply to block members.
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty" cbor:"compression,omitempty"`
	Encryption  string `json:"encryption,omitempty" yaml:"encryption,omitempty" cbor:"encryption,omitempty"`
}

// Encoding describes how records of a schema are serialized on the wire.
type Encoding struct {
	Kind EncodingKind `json:"kind" yaml:"kind" cbor:"kind"`

	// Text encoding options
	TokenSeparator   string `json:"token_separator,omitempty" yaml:"token_separator,omitempty" cbor:"token_separator,omitempty"`
	BlockSeparator   string `json:"block_separator,omitempty" yaml:"block_separator,omitempty" cbor:"block_separator,omitempty"`
	DecimalSeparator string `json:"decimal_separator,omitempty" yaml:"decimal_separator,omitempty" cbor:"decimal_separator,omitempty"`

	// Binary encoding options
	ByteOrder    string         `json:"byte_order,omitempty" yaml:"byte_order,omitempty" cbor:"byte_order,omitempty"`
	ByteEncoding string         `json:"byte_encoding,omitempty" yaml:"byte_encoding,omitempty" cbor:"byte_encoding,omitempty"`
	Members      []BinaryMember `json:"members,omitempty" yaml:"members,omitempty" cbor:"members,omitempty"`
}

// TextEncoding returns a text encoding with the usual separators.
func TextEncoding() *Encoding {
	return &Encoding{Kind: EncodingText, TokenSeparator: ",", BlockSeparator: "\n", DecimalSeparator: "."}
}

// BinaryEncoding returns a raw big-endian binary encoding with the given members.
func BinaryEncoding(members ...BinaryMember) *Encoding {
	return &Encoding{Kind: EncodingBinary, ByteOrder: "bigEndian", ByteEncoding: "raw", Members: members}
}

// ComponentMember describes a scalar field with a primitive type.
func ComponentMember(ref, dataType string) BinaryMember {
	return BinaryMember{Kind: MemberComponent, Ref: ref, DataType: dataType}
}

// BlockMember describes a compressed and/or encrypted block.
func BlockMember(ref, compression, encryption string) BinaryMember {
	return BinaryMember{Kind: MemberBlock, Ref: ref, Compression: compression, Encryption: encryption}
}

// Clone returns a deep copy of e. Cloning nil returns nil.
func (e *Encoding) Clone() *Encoding {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Members != nil {
		cp.Members = append([]BinaryMember(nil), e.Members...)
	}
	return &cp
}

// Validate checks the encoding family and binary members. A nil encoding
// is valid.
func (e *Encoding) Validate() error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case EncodingText, EncodingBinary, EncodingJSON, EncodingXML:
	default:
		return fmt.Errorf("unknown encoding kind %q", e.Kind)
	}
	for i, m := range e.Members {
		if m.Kind != MemberComponent && m.Kind != MemberBlock {
			return fmt.Errorf("member %d: unknown kind %q", i, m.Kind)
		}
		for _, v := range []string{m.Ref, m.DataType, m.Compression, m.Encryption} {
			if hasControl(v) {
				return fmt.Errorf("member %d (%q): contains control characters", i, m.Ref)
			}
		}
	}
	return nil
}
