package ir

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// String returns the lower-case hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for display.
func (d Digest) Short() string {
	return d.String()[:12]
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

// domainKey is a 32-byte BLAKE3 key. Keyed hashing separates domains:
// the same bytes hash differently as an item and as a binding. The keys
// are ASCII domain names, zero-padded.
type domainKey [32]byte

func newDomainKey(name string) domainKey {
	var k domainKey
	copy(k[:], name)
	return k
}

var (
	itemDomainKey    = newDomainKey("kiln.item.v1")
	bindingDomainKey = newDomainKey("kiln.binding.v1")
)

func keyedHash(key domainKey, data []byte) Digest {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("ir: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ItemRecord is the portion of an item that defines its build result.
// Meta values must be CBOR-encodable.
type ItemRecord struct {
	Source string         `cbor:"source"`
	Output string         `cbor:"output"`
	Body   []byte         `cbor:"body"`
	Meta   map[string]any `cbor:"meta"`
}

// ItemDigest computes the item-domain digest of rec.
// Returns error if the metadata cannot be encoded.
func ItemDigest(rec ItemRecord) (Digest, error) {
	data, err := Encode(rec)
	if err != nil {
		return Digest{}, fmt.Errorf("ItemDigest %s: %w", rec.Source, err)
	}
	return keyedHash(itemDomainKey, data), nil
}

// BindingDigest computes the binding-domain digest of a rule's committed
// items. Order matters: items are expected in discovery order.
func BindingDigest(rule string, items []Digest) Digest {
	data, err := Encode(struct {
		Rule  string   `cbor:"rule"`
		Items []Digest `cbor:"items"`
	}{rule, items})
	if err != nil {
		// Strings and fixed-size arrays always encode.
		panic("ir: BindingDigest: " + err.Error())
	}
	return keyedHash(bindingDomainKey, data)
}
