// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Vellum's standard CBOR encoding configuration.
//
// Every content identifier in the system is a hash of bytes, and every
// domain event is identified by the hash of its serialized payload. For
// those hashes to be stable across processes (and across language
// boundaries, should another implementation ever speak the same wire
// format), the serialization must be canonical: the same logical value
// must always produce the same bytes.
//
// This package pins that canonical form. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. CID computation MUST go
// through [Marshal]; hashing the output of any other serializer breaks
// chain verification.
//
// The decoder accepts standard CBOR and silently ignores unknown fields
// for forward compatibility.
//
// Usage:
//
//	data, err := codec.Marshal(event)
//	err = codec.Unmarshal(data, &event)
//
// Types with unexported identity data (cid.CID, workflow node IDs)
// implement encoding.TextMarshaler and serialize as CBOR text strings.
package codec
