// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the typed identifiers shared across the
// document domain and the message envelope that carries every command
// and event between components.
//
// The envelope enforces the correlation discipline: every message
// carries a message ID, a correlation ID naming the root of its
// message tree, and a causation ID naming its direct parent. A root
// message sets all three to the same value; a caused message inherits
// its parent's correlation ID and records the parent's message ID as
// its causation. No component may construct a message that violates
// these rules — [CausedBy] rejects a missing parent with
// [ErrMissingCorrelation] instead of silently minting a new root.
//
// Components accept commands and events only as envelopes. Handing a
// raw payload across a component boundary is a programming error; the
// receiving side is entitled to reject it.
package identity
