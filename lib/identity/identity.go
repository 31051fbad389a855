// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageID is the unique identifier of a single command or event.
type MessageID uuid.UUID

// NewMessageID returns a random message identifier.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// IsZero reports whether the ID is unset.
func (id MessageID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id MessageID) String() string { return uuid.UUID(id).String() }

// MarshalText implements encoding.TextMarshaler.
func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *MessageID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parsing message ID: %w", err)
	}
	*id = MessageID(parsed)
	return nil
}

// DocumentID identifies a document entity. Content is addressed by
// CID; the document ID names the mutable metadata record that points
// at it.
type DocumentID uuid.UUID

// NewDocumentID returns a random document identifier.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// IsZero reports whether the ID is unset.
func (id DocumentID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id DocumentID) String() string { return uuid.UUID(id).String() }

// MarshalText implements encoding.TextMarshaler.
func (id DocumentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parsing document ID: %w", err)
	}
	*id = DocumentID(parsed)
	return nil
}

// WorkflowInstanceID identifies one running (or finished) workflow
// instance.
type WorkflowInstanceID uuid.UUID

// NewWorkflowInstanceID returns a random workflow instance identifier.
func NewWorkflowInstanceID() WorkflowInstanceID { return WorkflowInstanceID(uuid.New()) }

// IsZero reports whether the ID is unset.
func (id WorkflowInstanceID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id WorkflowInstanceID) String() string { return uuid.UUID(id).String() }

// MarshalText implements encoding.TextMarshaler.
func (id WorkflowInstanceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *WorkflowInstanceID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("parsing workflow instance ID: %w", err)
	}
	*id = WorkflowInstanceID(parsed)
	return nil
}

// ActorID is the opaque identity of whoever caused a message: a user,
// a service, or the system itself. Authentication is out of scope; the
// value is carried verbatim into events and audit entries.
type ActorID struct {
	// Kind distinguishes user, service, and system actors.
	Kind ActorKind `json:"kind"`
	// ID is the actor's identifier within its kind. Empty for
	// ActorSystem.
	ID string `json:"id,omitempty"`
}

// ActorKind is the category of an actor.
type ActorKind string

const (
	ActorUser    ActorKind = "user"
	ActorService ActorKind = "service"
	ActorSystem  ActorKind = "system"
)

// UserActor returns an actor identifying a human user.
func UserActor(id string) ActorID { return ActorID{Kind: ActorUser, ID: id} }

// ServiceActor returns an actor identifying an automated service.
func ServiceActor(name string) ActorID { return ActorID{Kind: ActorService, ID: name} }

// SystemActor returns the anonymous system actor used by internal
// maintenance paths (retention sweeps, automated promotion).
func SystemActor() ActorID { return ActorID{Kind: ActorSystem} }

func (a ActorID) String() string {
	if a.Kind == ActorSystem {
		return string(ActorSystem)
	}
	return string(a.Kind) + ":" + a.ID
}

// IsZero reports whether the actor is unset (distinct from the system
// actor, which has Kind set).
func (a ActorID) IsZero() bool { return a.Kind == "" }

// Identity is the mandatory triple carried by every message.
//
// Invariants: a root message has MessageID == CorrelationID ==
// CausationID; a caused message shares its parent's CorrelationID and
// has CausationID == parent.MessageID.
type Identity struct {
	MessageID     MessageID `json:"message_id"`
	CorrelationID MessageID `json:"correlation_id"`
	CausationID   MessageID `json:"causation_id"`
}

// NewRootIdentity mints the identity of a message with no parent: all
// three IDs equal.
func NewRootIdentity() Identity {
	id := NewMessageID()
	return Identity{MessageID: id, CorrelationID: id, CausationID: id}
}

// Derive mints the identity of a message caused by the receiver:
// correlation is inherited, causation is the parent's message ID.
func (i Identity) Derive() Identity {
	return Identity{
		MessageID:     NewMessageID(),
		CorrelationID: i.CorrelationID,
		CausationID:   i.MessageID,
	}
}

// IsZero reports whether the identity is entirely unset.
func (i Identity) IsZero() bool {
	return i.MessageID.IsZero() && i.CorrelationID.IsZero() && i.CausationID.IsZero()
}

// IsRoot reports whether the identity belongs to a root message.
func (i Identity) IsRoot() bool {
	return !i.MessageID.IsZero() && i.MessageID == i.CorrelationID && i.MessageID == i.CausationID
}

// Validate checks the mandatory-triple invariant: every field present.
func (i Identity) Validate() error {
	if i.MessageID.IsZero() || i.CorrelationID.IsZero() || i.CausationID.IsZero() {
		return ErrMissingCorrelation
	}
	return nil
}
