package opinion

import (
	"github.com/cockroachdb/errors"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidIDLength is returned by IDFromBytes when raw isn't exactly 32 bytes.
var ErrInvalidIDLength = errors.New("opinion: id must be exactly 32 bytes")

// ID is the opaque, content-addressed identifier of a voting object.
// Equality and map-key hashing are by byte content, same as a plain array.
type ID [32]byte

// NewID derives the canonical id for payload by hashing it with BLAKE2b-256.
func NewID(payload []byte) ID {
	return ID(blake2b.Sum256(payload))
}

// IDFromBytes copies raw, already-hashed bytes into an ID. It is used when
// an id is received off the wire rather than derived locally.
func IDFromBytes(raw []byte) (id ID, err error) {
	if len(raw) != len(id) {
		return id, ErrInvalidIDLength
	}
	copy(id[:], raw)
	return id, nil
}

// Bytes returns the id's raw byte content.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String renders the id as base58, the encoding used across this codebase
// for anything that ends up in a log line or an HTTP response.
func (id ID) String() string {
	return base58.Encode(id[:])
}

// IDFromString parses the base58 encoding produced by ID.String.
func IDFromString(s string) (ID, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ID{}, errors.Wrap(err, "opinion: decoding base58 id")
	}
	return IDFromBytes(raw)
}
