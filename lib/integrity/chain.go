// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"errors"
	"fmt"
	"time"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

// ErrChainFlagged is returned when appending to a chain that failed
// verification. Flagged chains are append-locked pending operator
// review.
var ErrChainFlagged = errors.New("chain is flagged for review, appends are locked")

// ChainBrokenError reports an append whose predecessor does not match
// the chain head.
type ChainBrokenError struct {
	Expected cid.CID
	Got      cid.CID
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("chain broken: expected predecessor %s, got %s",
		cidLabel(e.Expected), cidLabel(e.Got))
}

func cidLabel(c cid.CID) string {
	if c.IsZero() {
		return "none"
	}
	return c.ShortPrefix()
}

// Link is one chain entry. The payload bytes ride along so the chain
// verifies without consulting any other store.
type Link struct {
	Integrity EventIntegrity `json:"integrity"`
	Payload   []byte         `json:"payload"`
}

// IssueKind classifies a verification anomaly.
type IssueKind string

const (
	IssueContentMismatch   IssueKind = "content_mismatch"
	IssueBrokenLink        IssueKind = "broken_link"
	IssueSequenceViolation IssueKind = "sequence_violation"
	IssueGenesisMismatch   IssueKind = "genesis_mismatch"
	IssueHeadMismatch      IssueKind = "head_mismatch"
)

// Issue is one anomaly found during chain verification.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Sequence uint64    `json:"sequence"`
	EventCID cid.CID   `json:"event_cid"`
	Detail   string    `json:"detail"`
}

// VerifyResult is the outcome of a full chain verification. Issues
// holds every anomaly found; Valid means there were none.
type VerifyResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Chain is the hash-linked event log of one workflow instance.
type Chain struct {
	InstanceID identity.WorkflowInstanceID `json:"instance_id"`
	DocumentID identity.DocumentID         `json:"document_id"`
	GenesisCID cid.CID                     `json:"genesis_cid,omitempty"`
	HeadCID    cid.CID                     `json:"head_cid,omitempty"`
	Links      []Link                      `json:"links"`

	// Flagged locks the chain against appends after a failed
	// verification.
	Flagged      bool      `json:"flagged"`
	LastVerified time.Time `json:"last_verified,omitempty"`

	// ActorLastSeen records, per actor, the timestamp of their most
	// recent link.
	ActorLastSeen map[string]time.Time `json:"actor_last_seen,omitempty"`
}

// NewChain returns an empty chain for a workflow instance.
func NewChain(instanceID identity.WorkflowInstanceID, documentID identity.DocumentID) *Chain {
	return &Chain{
		InstanceID:    instanceID,
		DocumentID:    documentID,
		ActorLastSeen: make(map[string]time.Time),
	}
}

// Length returns the number of links.
func (c *Chain) Length() int { return len(c.Links) }

// Head returns the newest link's integrity, or nil for an empty
// chain.
func (c *Chain) Head() *EventIntegrity {
	if len(c.Links) == 0 {
		return nil
	}
	return &c.Links[len(c.Links)-1].Integrity
}

// Append adds a pre-built link to the chain. The link's predecessor
// must equal the current head (or be absent for the genesis link of
// an empty chain), and its sequence must continue the chain.
func (c *Chain) Append(payload []byte, integrity EventIntegrity) error {
	if c.Flagged {
		return ErrChainFlagged
	}
	if len(c.Links) == 0 {
		if !integrity.PredecessorCID.IsZero() {
			return &ChainBrokenError{Got: integrity.PredecessorCID}
		}
		if integrity.Metadata.SequenceNumber != 0 {
			return fmt.Errorf("genesis link has sequence %d, want 0", integrity.Metadata.SequenceNumber)
		}
		c.GenesisCID = integrity.EventCID
	} else {
		if integrity.PredecessorCID != c.HeadCID {
			return &ChainBrokenError{Expected: c.HeadCID, Got: integrity.PredecessorCID}
		}
		head := c.Head()
		if want := head.Metadata.SequenceNumber + 1; integrity.Metadata.SequenceNumber != want {
			return fmt.Errorf("link has sequence %d, want %d", integrity.Metadata.SequenceNumber, want)
		}
	}

	c.Links = append(c.Links, Link{Integrity: integrity, Payload: payload})
	c.HeadCID = integrity.EventCID
	if c.ActorLastSeen == nil {
		c.ActorLastSeen = make(map[string]time.Time)
	}
	c.ActorLastSeen[integrity.Metadata.Actor.String()] = integrity.Metadata.Timestamp
	return nil
}

// Extend computes integrity for a payload against the current head
// and appends it in one step.
func (c *Chain) Extend(payload []byte, actor identity.ActorID, node string, eventType EventType, at time.Time) (EventIntegrity, error) {
	integrity := NewEventIntegrity(payload, c.Head(), actor, node, eventType, at)
	if err := c.Append(payload, integrity); err != nil {
		return EventIntegrity{}, err
	}
	return integrity, nil
}

// Verify walks the whole chain and collects every anomaly: payloads
// whose hash no longer matches their CID, broken predecessor links,
// non-monotonic sequences, and genesis or head records that disagree
// with the links. It never short-circuits, so one sweep reports the
// full damage. A corrupted chain is flagged against further appends.
func (c *Chain) Verify(now time.Time) VerifyResult {
	var issues []Issue
	var previous cid.CID

	for i, link := range c.Links {
		integrity := link.Integrity
		seq := integrity.Metadata.SequenceNumber

		if !integrity.Verify(link.Payload) {
			issues = append(issues, Issue{
				Kind:     IssueContentMismatch,
				Sequence: seq,
				EventCID: integrity.EventCID,
				Detail:   fmt.Sprintf("payload at sequence %d does not hash to its recorded CID", seq),
			})
		}
		if integrity.PredecessorCID != previous {
			issues = append(issues, Issue{
				Kind:     IssueBrokenLink,
				Sequence: seq,
				EventCID: integrity.EventCID,
				Detail: fmt.Sprintf("link at position %d: expected predecessor %s, got %s",
					i, cidLabel(previous), cidLabel(integrity.PredecessorCID)),
			})
		}
		if seq != uint64(i) {
			issues = append(issues, Issue{
				Kind:     IssueSequenceViolation,
				Sequence: seq,
				EventCID: integrity.EventCID,
				Detail:   fmt.Sprintf("link at position %d carries sequence %d", i, seq),
			})
		}
		previous = integrity.EventCID
	}

	if len(c.Links) > 0 {
		if first := c.Links[0].Integrity; c.GenesisCID != first.EventCID {
			issues = append(issues, Issue{
				Kind:     IssueGenesisMismatch,
				Sequence: 0,
				EventCID: first.EventCID,
				Detail:   "recorded genesis CID does not match the first link",
			})
		}
		if last := c.Links[len(c.Links)-1].Integrity; c.HeadCID != last.EventCID {
			issues = append(issues, Issue{
				Kind:     IssueHeadMismatch,
				Sequence: last.Metadata.SequenceNumber,
				EventCID: last.EventCID,
				Detail:   "recorded head CID does not match the last link",
			})
		}
	}

	c.LastVerified = now
	if len(issues) > 0 {
		c.Flagged = true
		return VerifyResult{Valid: false, Issues: issues}
	}
	return VerifyResult{Valid: true}
}
