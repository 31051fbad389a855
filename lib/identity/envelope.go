// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"time"
)

// ErrMissingCorrelation is returned when a caller attempts to
// construct or submit a message without the mandatory identity triple:
// a caused message with no parent, or an envelope with missing IDs.
var ErrMissingCorrelation = errors.New("message is missing correlation identity")

// Envelope wraps a command or event payload with its identity, the
// actor responsible, and the issue timestamp. It is the only
// sanctioned way to hand a message to another component.
//
// The payload is typed by the consumer; the envelope itself is
// payload-agnostic so the same type serves commands and events.
type Envelope[P any] struct {
	Identity Identity  `json:"identity"`
	Actor    ActorID   `json:"actor"`
	IssuedAt time.Time `json:"issued_at"`
	Payload  P         `json:"payload"`
}

// Root wraps payload as a root message: a fresh identity with all
// three IDs equal. Used for commands entering the system from outside
// any existing message tree.
func Root[P any](payload P, actor ActorID, issuedAt time.Time) Envelope[P] {
	return Envelope[P]{
		Identity: NewRootIdentity(),
		Actor:    actor,
		IssuedAt: issuedAt,
		Payload:  payload,
	}
}

// CausedBy wraps payload as a message caused by parent: correlation
// inherited, causation set to the parent's message ID. Fails with
// ErrMissingCorrelation if the parent identity is absent — a caused
// message must never silently become a new root.
func CausedBy[P any](payload P, parent Identity, actor ActorID, issuedAt time.Time) (Envelope[P], error) {
	if parent.MessageID.IsZero() || parent.CorrelationID.IsZero() {
		return Envelope[P]{}, ErrMissingCorrelation
	}
	return Envelope[P]{
		Identity: parent.Derive(),
		Actor:    actor,
		IssuedAt: issuedAt,
		Payload:  payload,
	}, nil
}

// Validate checks the envelope's boundary invariants: complete
// identity triple and a non-zero actor. Components call this before
// any side effect so that a violated invariant rejects the message
// without mutating state.
func (e Envelope[P]) Validate() error {
	if err := e.Identity.Validate(); err != nil {
		return err
	}
	if e.Actor.IsZero() {
		return ErrMissingCorrelation
	}
	return nil
}
