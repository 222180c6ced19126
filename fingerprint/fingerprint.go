// Package fingerprint computes structural digests of record schemas and
// their encodings. Two schemas that differ only in the name of their root
// node produce the same fingerprint; any other difference in field names,
// kinds, definitions or binary encoding options produces a different one.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/c360/virtualsensor/swe"
)

// Size is the digest length in bytes.
const Size = 32

// Fingerprint is a BLAKE3-256 keyed digest of a schema token stream.
type Fingerprint [Size]byte

// Section markers. Every token after a marker is length-prefixed, so the
// stream stays unambiguous whatever bytes names or URIs contain.
const (
	nodeMark   = 0x1E // starts a schema node
	encMark    = 0x1D // starts the encoding section
	memberMark = 0x1F // starts a binary member
)

// domainKey keys the hash so schema fingerprints never collide with
// digests computed elsewhere over the same bytes. Changing it
// invalidates every persisted fingerprint.
var domainKey = [32]byte{
	'v', 'i', 'r', 't', 'u', 'a', 'l', 's', 'e', 'n', 's', 'o', 'r', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// Of returns the fingerprint of schema c combined with encoding enc.
// A nil enc fingerprints the schema alone.
func Of(c *swe.Component, enc *swe.Encoding) Fingerprint {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(Tokens(c, enc))

	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp
}

// Tokens returns the canonical token stream that Of digests.
func Tokens(c *swe.Component, enc *swe.Encoding) []byte {
	var buf []byte

	c.Walk(func(node *swe.Component, depth int) bool {
		buf = append(buf, nodeMark)
		buf = binary.AppendUvarint(buf, uint64(depth))
		// the root name is often a placeholder, so it is not part of the identity
		if depth > 0 {
			buf = appendToken(buf, node.Name)
		}
		buf = appendToken(buf, string(node.Kind))
		buf = appendToken(buf, node.Definition)
		return true
	})

	if enc != nil {
		buf = append(buf, encMark)
		buf = appendToken(buf, string(enc.Kind))
		if enc.Kind == swe.EncodingBinary {
			for _, m := range enc.Members {
				buf = append(buf, memberMark)
				buf = appendToken(buf, string(m.Kind))
				buf = appendToken(buf, m.Ref)
				if m.Kind == swe.MemberBlock {
					buf = appendToken(buf, m.Compression)
					buf = appendToken(buf, m.Encryption)
				} else {
					buf = appendToken(buf, m.DataType)
				}
			}
		}
	}

	return buf
}

func appendToken(buf []byte, tok string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(tok)))
	return append(buf, tok...)
}

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(raw) != Size {
		return fp, fmt.Errorf("fingerprint must be %d bytes, got %d", Size, len(raw))
	}
	copy(fp[:], raw)
	return fp, nil
}
