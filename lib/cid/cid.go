// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package cid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm is the hash algorithm name recorded in content metadata
// and used as the CID string prefix.
const Algorithm = "blake3"

// prefix is the canonical string-form prefix. "b3" rather than the
// full algorithm name keeps subject tokens short.
const prefix = "b3:"

// digestSize is the BLAKE3 output size in bytes.
const digestSize = 32

// domainKey is a 32-byte key for BLAKE3 keyed hashing. The byte
// values are the ASCII encoding of the domain name, zero-padded to 32
// bytes. Readable ASCII keeps the keys inspectable in hex dumps
// without sacrificing any cryptographic property. These are protocol
// constants; changing them invalidates every existing CID in that
// domain.
type domainKey [32]byte

var (
	contentDomainKey = domainKey{
		'v', 'e', 'l', 'l', 'u', 'm', '.', 'c', 'o', 'n', 't', 'e', 'n', 't',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	eventDomainKey = domainKey{
		'v', 'e', 'l', 'l', 'u', 'm', '.', 'e', 'v', 'e', 'n', 't',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// CID is a self-describing content identifier: a 32-byte BLAKE3 keyed
// digest. The zero value is no CID; use IsZero to test for it.
type CID struct {
	digest [digestSize]byte
}

// FromContent computes the content-domain CID of the given bytes.
// Empty input is legal and yields the digest of zero bytes, so
// zero-length ingests still have a well-defined identifier.
func FromContent(data []byte) CID {
	return keyedHash(contentDomainKey, data)
}

// FromEventPayload computes the event-domain CID of a canonical event
// payload. Callers must pass bytes produced by codec.Marshal; hashing
// any other serialization breaks chain verification. Two events with
// byte-identical payloads share a CID, so payloads that must be
// independent need a distinguishing field (timestamp or nonce).
func FromEventPayload(payload []byte) CID {
	return keyedHash(eventDomainKey, payload)
}

// String returns the canonical form: "b3:" + 64 hex characters.
// A zero CID renders as the empty string.
func (c CID) String() string {
	if c.IsZero() {
		return ""
	}
	return prefix + hex.EncodeToString(c.digest[:])
}

// ShortPrefix returns the first 12 hex characters of the digest, the
// form used in subject tokens and log output. Zero CIDs return "".
func (c CID) ShortPrefix() string {
	if c.IsZero() {
		return ""
	}
	return hex.EncodeToString(c.digest[:6])
}

// IsZero reports whether c is the zero CID (no identifier).
func (c CID) IsZero() bool {
	return c.digest == [digestSize]byte{}
}

// Parse parses the canonical string form back into a CID.
func Parse(s string) (CID, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return CID{}, fmt.Errorf("parsing CID %q: missing %q prefix", s, prefix)
	}
	decoded, err := hex.DecodeString(rest)
	if err != nil {
		return CID{}, fmt.Errorf("parsing CID %q: %w", s, err)
	}
	if len(decoded) != digestSize {
		return CID{}, fmt.Errorf("parsing CID %q: digest is %d bytes, want %d", s, len(decoded), digestSize)
	}
	var c CID
	copy(c.digest[:], decoded)
	return c, nil
}

// MarshalText implements encoding.TextMarshaler so CIDs serialize as
// their canonical string form in CBOR and JSON.
func (c CID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string
// decodes to the zero CID.
func (c *CID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = CID{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func keyedHash(key domainKey, data []byte) CID {
	// NewKeyed requires exactly 32 bytes, which domainKey guarantees,
	// so the error path is unreachable.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("cid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var c CID
	copy(c.digest[:], hasher.Sum(nil))
	return c
}
