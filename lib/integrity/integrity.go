// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"time"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

// EventType classifies a chain-linked workflow event.
type EventType string

const (
	EventStarted           EventType = "started"
	EventTransitioned      EventType = "transitioned"
	EventNodeEntered       EventType = "node_entered"
	EventNodeExited        EventType = "node_exited"
	EventCompleted         EventType = "completed"
	EventCancelled         EventType = "cancelled"
	EventFailed            EventType = "failed"
	EventPermissionGranted EventType = "permission_granted"
	EventPermissionRevoked EventType = "permission_revoked"
	EventContextUpdated    EventType = "context_updated"
)

// Metadata is the sequencing context recorded with every link. It is
// deliberately excluded from the event CID: the CID commits to the
// payload alone, so two processes hashing the same payload agree, and
// callers needing distinct CIDs for identical payloads must put a
// nonce in the payload.
type Metadata struct {
	SequenceNumber uint64           `json:"sequence_number"`
	Actor          identity.ActorID `json:"actor"`
	WorkflowNode   string           `json:"workflow_node"`
	EventType      EventType        `json:"event_type"`
	Timestamp      time.Time        `json:"timestamp"`
}

// EventIntegrity ties one event to its position in a chain.
type EventIntegrity struct {
	EventCID       cid.CID  `json:"event_cid"`
	PredecessorCID cid.CID  `json:"predecessor_cid,omitempty"`
	Metadata       Metadata `json:"metadata"`
}

// NewEventIntegrity computes integrity data for an event payload.
// predecessor is nil for a genesis event, which takes sequence 0;
// otherwise the sequence is the predecessor's plus one.
func NewEventIntegrity(payload []byte, predecessor *EventIntegrity, actor identity.ActorID, node string, eventType EventType, at time.Time) EventIntegrity {
	integrity := EventIntegrity{
		EventCID: cid.FromEventPayload(payload),
		Metadata: Metadata{
			Actor:        actor,
			WorkflowNode: node,
			EventType:    eventType,
			Timestamp:    at,
		},
	}
	if predecessor != nil {
		integrity.PredecessorCID = predecessor.EventCID
		integrity.Metadata.SequenceNumber = predecessor.Metadata.SequenceNumber + 1
	}
	return integrity
}

// Verify recomputes the payload hash and reports whether it still
// matches the recorded event CID.
func (e EventIntegrity) Verify(payload []byte) bool {
	return cid.FromEventPayload(payload) == e.EventCID
}
