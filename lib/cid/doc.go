// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package cid implements content identifiers: self-describing BLAKE3
// hashes used as the primary key for every stored byte sequence and
// every chained workflow event.
//
// A CID is computed with BLAKE3 keyed hashing under a fixed domain
// key, so the same bytes hashed in different contexts produce
// different identifiers. Two domains exist:
//
//   - content: raw document bytes stored in object-store partitions
//   - event: canonical CBOR payloads of chained workflow events
//
// Domain separation prevents a stored document whose bytes happen to
// equal an event payload from colliding with that event's CID. Within
// a domain, identical bytes always produce identical CIDs; this is
// what makes ingestion idempotent and deduplication implicit.
//
// The canonical string form is "b3:" followed by 64 lowercase hex
// characters. The prefix names the algorithm, keeping the identifier
// self-describing without carrying a full multiformat header.
package cid
