// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/codec"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/messaging"
)

func TestKindCatalog(t *testing.T) {
	for _, k := range Kinds() {
		if !k.IsValid() {
			t.Errorf("catalog member %q reported invalid", k)
		}
	}
	if Kind("document_shredded").IsValid() {
		t.Error("unknown kind reported valid")
	}
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	payload := ContentIngested{
		CID:       cid.FromContent([]byte("stable payload")),
		Partition: PartitionRef{Kind: "staging", Bucket: "docs-staging"},
		Metadata: ContentMetadata{
			MimeType:      "text/plain",
			SizeBytes:     14,
			HashAlgorithm: cid.Algorithm,
		},
		IngestedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	first, err := CanonicalBytes(payload)
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := CanonicalBytes(payload)
		if err != nil {
			t.Fatalf("CanonicalBytes on iteration %d: %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs on iteration %d", i)
		}
	}
}

func TestRecordRoundtrip(t *testing.T) {
	payload := WorkflowTransitioned{
		InstanceID:     identity.NewWorkflowInstanceID(),
		DocumentID:     identity.NewDocumentID(),
		From:           "in_review",
		To:             "approved",
		Reason:         "all checks passed",
		TransitionedAt: time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
	}
	env := identity.Root[Payload](payload, identity.UserActor("reviewer"), payload.TransitionedAt)

	rec, err := NewRecord(env)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.Kind != KindWorkflowTransitioned {
		t.Fatalf("Kind = %q, want %q", rec.Kind, KindWorkflowTransitioned)
	}

	decoded, err := DecodePayload(rec)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	got, ok := decoded.(*WorkflowTransitioned)
	if !ok {
		t.Fatalf("decoded payload has type %T", decoded)
	}
	if got.InstanceID != payload.InstanceID || got.To != payload.To {
		t.Errorf("decoded payload = %+v, want %+v", got, payload)
	}
}

func TestDecodeRecordRejectsUnknownKind(t *testing.T) {
	env := identity.Root[Payload](StagingCleaned{
		Partition: PartitionRef{Kind: "staging", Bucket: "docs-staging"},
		CleanedAt: time.Now().UTC(),
	}, identity.SystemActor(), time.Now().UTC())
	rec, err := NewRecord(env)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	rec.Kind = "staging_exploded"
	data, err := codec.Marshal(rec)
	if err != nil {
		t.Fatalf("encoding record: %v", err)
	}
	if _, err := DecodeRecord(data); err == nil {
		t.Fatal("DecodeRecord accepted unknown kind")
	}
}

func TestSubjectsFanOut(t *testing.T) {
	c := cid.FromContent([]byte("fan-out"))
	payload := ContentPromoted{
		CID:        c,
		From:       PartitionRef{Kind: "staging", Bucket: "docs-staging"},
		To:         PartitionRef{Kind: "aggregate", Bucket: "docs-invoice-aggregate"},
		Reason:     "processing complete",
		PromotedAt: time.Now().UTC(),
	}
	env := identity.Root[Payload](payload, identity.UserActor("alice"), time.Now().UTC())
	rec, err := NewRecord(env)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	subjects := Subjects(rec, env.Payload)
	if len(subjects) != 3 {
		t.Fatalf("Subjects returned %d entries %v, want 3", len(subjects), subjects)
	}

	// A workflow event from the system actor carries no content and no
	// user, so only the aggregate scope remains.
	wfEnv := identity.Root[Payload](WorkflowCompleted{
		InstanceID:  identity.NewWorkflowInstanceID(),
		DocumentID:  identity.NewDocumentID(),
		FinalNode:   "approved",
		CompletedAt: time.Now().UTC(),
	}, identity.SystemActor(), time.Now().UTC())
	wfRec, err := NewRecord(wfEnv)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if got := Subjects(wfRec, wfEnv.Payload); len(got) != 1 {
		t.Fatalf("Subjects returned %d entries %v, want 1", len(got), got)
	}
}

func TestPublisherDelivers(t *testing.T) {
	bus := messaging.NewMemory()
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, "events.document.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	payload := ProcessingStarted{
		CID:       cid.FromContent([]byte("publish me")),
		JobID:     uuid.New(),
		Stages:    []string{"virus_scan", "content_promotion"},
		StartedAt: time.Now().UTC(),
	}
	env := identity.Root[Payload](payload, identity.ServiceActor("pipeline"), payload.StartedAt)

	pub := NewPublisher(bus)
	if err := pub.Publish(ctx, env); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Aggregate scope plus CID scope; the service actor adds no user
	// subject.
	for i := 0; i < 2; i++ {
		select {
		case msg := <-sub.C:
			rec, err := DecodeRecord(msg.Data)
			if err != nil {
				t.Fatalf("DecodeRecord: %v", err)
			}
			if rec.Kind != KindProcessingStarted {
				t.Errorf("delivery %d has kind %q", i, rec.Kind)
			}
			if rec.Identity.MessageID != env.Identity.MessageID {
				t.Errorf("delivery %d lost the message identity", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("delivery %d never arrived", i)
		}
	}
}
