// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package subject implements the subject algebra: the deterministic
// mapping from (entity scope, entity identifier, event kind) to the
// hierarchical dotted topic names events are published under.
//
// Subjects read left to right from most general to most specific:
//
//	events.document.cid.<cid-prefix>.<event-kind>
//	events.document.user.<user-id>.<event-kind>
//	events.document.aggregate.<aggregate-type>.<event-kind>
//
// Every prefix of a subject is a valid wildcard subscription, so
// subscribers can receive families of events by cutting the name at
// any dot and appending the multi-token wildcard ">". Subjects are
// pure string functions of their inputs: the same entity always maps
// to the same subject in every process.
package subject

import (
	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

// namespace and domain are the fixed leading tokens of every document
// event subject.
const (
	namespace = "events"
	domain    = "document"
)

// Scope is the entity dimension a subject addresses.
type Scope string

const (
	// ScopeCID addresses events about a specific content identifier.
	ScopeCID Scope = "cid"
	// ScopeUser addresses events about a specific user's documents.
	ScopeUser Scope = "user"
	// ScopeAggregate addresses events about an aggregate type as a
	// whole.
	ScopeAggregate Scope = "aggregate"
)

// ForCID returns the subject for an event about the given content.
// The CID participates via its 12-character short prefix; full digests
// would make subjects unwieldy and the prefix is unique enough for
// routing (collisions merely co-mingle subscriptions, they never
// corrupt data, which is keyed by full CID).
func ForCID(c cid.CID, eventKind string) string {
	return namespace + "." + domain + "." + string(ScopeCID) + "." + c.ShortPrefix() + "." + eventKind
}

// ForUser returns the subject for an event about a user's documents.
func ForUser(userID string, eventKind string) string {
	return namespace + "." + domain + "." + string(ScopeUser) + "." + userID + "." + eventKind
}

// ForAggregate returns the subject for an event about an aggregate
// type.
func ForAggregate(aggregateType string, eventKind string) string {
	return namespace + "." + domain + "." + string(ScopeAggregate) + "." + aggregateType + "." + eventKind
}

// ForActor returns the subject scoped to the given actor: user actors
// map to the user scope, everything else to the aggregate scope under
// the actor kind.
func ForActor(actor identity.ActorID, eventKind string) string {
	if actor.Kind == identity.ActorUser {
		return ForUser(actor.ID, eventKind)
	}
	return ForAggregate(string(actor.Kind), eventKind)
}

// CIDEvents returns the wildcard pattern matching every event kind for
// the given content.
func CIDEvents(c cid.CID) string {
	return namespace + "." + domain + "." + string(ScopeCID) + "." + c.ShortPrefix() + ".>"
}

// UserEvents returns the wildcard pattern matching every event kind
// for the given user.
func UserEvents(userID string) string {
	return namespace + "." + domain + "." + string(ScopeUser) + "." + userID + ".>"
}

// AggregateEvents returns the wildcard pattern matching every event
// kind for the given aggregate type.
func AggregateEvents(aggregateType string) string {
	return namespace + "." + domain + "." + string(ScopeAggregate) + "." + aggregateType + ".>"
}

// AllDocumentEvents returns the wildcard pattern matching every
// document-domain event.
func AllDocumentEvents() string {
	return namespace + "." + domain + ".>"
}
