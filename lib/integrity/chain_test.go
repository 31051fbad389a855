// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

var chainStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func buildChain(t *testing.T, payloads ...[]byte) *Chain {
	t.Helper()
	chain := NewChain(identity.NewWorkflowInstanceID(), identity.NewDocumentID())
	for i, payload := range payloads {
		_, err := chain.Extend(payload, identity.UserActor("alice"), "in_review", EventTransitioned, chainStart.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("Extend link %d: %v", i, err)
		}
	}
	return chain
}

func TestNewEventIntegritySequencing(t *testing.T) {
	genesis := NewEventIntegrity([]byte("genesis"), nil, identity.SystemActor(), "start", EventStarted, chainStart)
	if genesis.Metadata.SequenceNumber != 0 {
		t.Errorf("genesis sequence = %d", genesis.Metadata.SequenceNumber)
	}
	if !genesis.PredecessorCID.IsZero() {
		t.Error("genesis has a predecessor")
	}

	next := NewEventIntegrity([]byte("second"), &genesis, identity.UserActor("alice"), "in_review", EventTransitioned, chainStart)
	if next.Metadata.SequenceNumber != 1 {
		t.Errorf("second sequence = %d", next.Metadata.SequenceNumber)
	}
	if next.PredecessorCID != genesis.EventCID {
		t.Error("second link does not point at genesis")
	}
}

func TestEventIntegrityVerify(t *testing.T) {
	payload := []byte("immutable payload")
	integrity := NewEventIntegrity(payload, nil, identity.SystemActor(), "start", EventStarted, chainStart)
	if !integrity.Verify(payload) {
		t.Error("verification failed for untouched payload")
	}
	if integrity.Verify([]byte("immutable psyload")) {
		t.Error("verification passed for altered payload")
	}
}

func TestSamePayloadSharesCID(t *testing.T) {
	a := NewEventIntegrity([]byte("repeat"), nil, identity.SystemActor(), "start", EventStarted, chainStart)
	b := NewEventIntegrity([]byte("repeat"), nil, identity.UserActor("bob"), "approved", EventCompleted, chainStart.Add(time.Hour))
	if a.EventCID != b.EventCID {
		t.Error("metadata leaked into the event CID")
	}
}

func TestChainExtendAndVerify(t *testing.T) {
	chain := buildChain(t, []byte("e0"), []byte("e1"), []byte("e2"))
	if chain.Length() != 3 {
		t.Fatalf("chain length = %d", chain.Length())
	}
	if chain.GenesisCID != chain.Links[0].Integrity.EventCID {
		t.Error("genesis CID not recorded")
	}
	if chain.HeadCID != chain.Links[2].Integrity.EventCID {
		t.Error("head CID not updated")
	}
	for i, link := range chain.Links {
		if got := link.Integrity.Metadata.SequenceNumber; got != uint64(i) {
			t.Errorf("link %d has sequence %d", i, got)
		}
	}

	result := chain.Verify(chainStart.Add(time.Hour))
	if !result.Valid {
		t.Fatalf("intact chain reported corrupt: %+v", result.Issues)
	}
	if !chain.LastVerified.Equal(chainStart.Add(time.Hour)) {
		t.Error("LastVerified not updated")
	}
}

func TestAppendRejectsForgedPredecessor(t *testing.T) {
	chain := buildChain(t, []byte("e0"), []byte("e1"))
	forged := NewEventIntegrity([]byte("e2"), chain.Head(), identity.UserActor("mallory"), "approved", EventTransitioned, chainStart)
	forged.PredecessorCID = cid.FromEventPayload([]byte("somewhere else"))

	err := chain.Append([]byte("e2"), forged)
	var broken *ChainBrokenError
	if !errors.As(err, &broken) {
		t.Fatalf("Append with forged predecessor = %v, want ChainBrokenError", err)
	}
	if broken.Expected != chain.HeadCID {
		t.Error("error does not name the expected head")
	}
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	chain := buildChain(t, []byte("payload zero"), []byte("payload one!"), []byte("payload two!"))

	// Same length, different bytes, at sequence 1.
	chain.Links[1].Payload = []byte("payload 0ne!")

	result := chain.Verify(chainStart.Add(time.Hour))
	if result.Valid {
		t.Fatal("tampered chain reported valid")
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == IssueContentMismatch && issue.Sequence == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no content mismatch naming sequence 1 in %+v", result.Issues)
	}

	if err := chain.Append([]byte("e3"), NewEventIntegrity([]byte("e3"), chain.Head(), identity.SystemActor(), "end", EventCompleted, chainStart)); !errors.Is(err, ErrChainFlagged) {
		t.Errorf("append to flagged chain = %v, want ErrChainFlagged", err)
	}
}

func TestVerifyCollectsEveryIssue(t *testing.T) {
	chain := buildChain(t, []byte("e0"), []byte("e1"), []byte("e2"), []byte("e3"))

	// Tamper a payload, break a link, and skew a sequence number all
	// at once; one verification pass must report all three.
	chain.Links[1].Payload = []byte("xx")
	chain.Links[2].Integrity.PredecessorCID = cid.FromEventPayload([]byte("forged"))
	chain.Links[3].Integrity.Metadata.SequenceNumber = 9

	result := chain.Verify(chainStart)
	if result.Valid {
		t.Fatal("damaged chain reported valid")
	}
	kinds := make(map[IssueKind]bool)
	for _, issue := range result.Issues {
		kinds[issue.Kind] = true
	}
	for _, want := range []IssueKind{IssueContentMismatch, IssueBrokenLink, IssueSequenceViolation} {
		if !kinds[want] {
			t.Errorf("issue %s not reported in %+v", want, result.Issues)
		}
	}
}

func TestVerifyDetectsDeletedLink(t *testing.T) {
	chain := buildChain(t, []byte("e0"), []byte("e1"), []byte("e2"))
	chain.Links = append(chain.Links[:1], chain.Links[2:]...)

	result := chain.Verify(chainStart)
	if result.Valid {
		t.Fatal("chain with deleted link reported valid")
	}
}

func TestVerifyDetectsReorderedLinks(t *testing.T) {
	chain := buildChain(t, []byte("e0"), []byte("e1"), []byte("e2"))
	chain.Links[1], chain.Links[2] = chain.Links[2], chain.Links[1]

	result := chain.Verify(chainStart)
	if result.Valid {
		t.Fatal("reordered chain reported valid")
	}
}

func TestConcurrentActorsInterleave(t *testing.T) {
	chain := NewChain(identity.NewWorkflowInstanceID(), identity.NewDocumentID())
	actors := []identity.ActorID{
		identity.UserActor("alice"),
		identity.UserActor("bob"),
		identity.ServiceActor("pipeline"),
	}
	for i := 0; i < 9; i++ {
		actor := actors[i%len(actors)]
		payload := []byte(fmt.Sprintf("event %d", i))
		if _, err := chain.Extend(payload, actor, "in_review", EventTransitioned, chainStart.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Extend %d: %v", i, err)
		}
	}
	if result := chain.Verify(chainStart.Add(time.Minute)); !result.Valid {
		t.Fatalf("interleaved chain corrupt: %+v", result.Issues)
	}
	for _, actor := range actors {
		if _, ok := chain.ActorLastSeen[actor.String()]; !ok {
			t.Errorf("no last-seen timestamp for %s", actor)
		}
	}
	if got := chain.ActorLastSeen["user:alice"]; !got.Equal(chainStart.Add(6 * time.Second)) {
		t.Errorf("alice last seen %v", got)
	}
}
