// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrity implements the hash-linked workflow event chain.
//
// Every workflow event's canonical payload bytes are self-hashed into
// an event CID (see cid.FromEventPayload). Each chain link records
// that CID, the predecessor's CID, and sequencing metadata, and keeps
// the payload bytes alongside, so verification needs no external
// state: tampering with any stored payload, deleting or reordering
// links, or forging a predecessor is detectable from the chain alone.
//
// Verification collects every anomaly it finds rather than stopping
// at the first. A corrupted chain is flagged and refuses further
// appends; repair is deliberately not offered, since silent repair
// defeats tamper detection.
package integrity
