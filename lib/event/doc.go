// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the closed catalog of document domain events
// and their wire form.
//
// Every event crossing a component boundary travels as a [Record]: the
// message identity triple, the acting principal, the issue time, the
// event kind, and the canonically encoded payload. Payload bytes are
// produced by [CanonicalBytes], so the same payload hashes to the same
// event CID in every process.
//
// The package is a leaf: payloads reference content by CID and
// partitions by name, never by the richer types of the packages that
// publish them.
package event
