// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"fmt"
	"time"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/codec"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/subject"
	"github.com/vellum-foundation/vellum/messaging"
)

// IntegrityRef ties an integrity-bearing event to its position in a
// hash chain. Events outside a chain carry no ref.
type IntegrityRef struct {
	EventCID       cid.CID `json:"event_cid"`
	PredecessorCID cid.CID `json:"predecessor_cid,omitempty"`
	Sequence       uint64  `json:"sequence"`
}

// Record is the wire form of one published event. Everything a
// consumer needs travels inside it; no out-of-band state crosses the
// boundary.
type Record struct {
	Identity  identity.Identity `json:"identity"`
	Actor     identity.ActorID  `json:"actor"`
	IssuedAt  time.Time         `json:"issued_at"`
	Kind      Kind              `json:"kind"`
	Payload   codec.RawMessage  `json:"payload"`
	Integrity *IntegrityRef     `json:"integrity,omitempty"`
}

// CanonicalBytes returns the canonical encoding of a payload. These
// bytes, and only these bytes, feed the event CID, so two processes
// encoding the same payload always agree on its identity.
func CanonicalBytes(p Payload) ([]byte, error) {
	data, err := codec.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.EventKind(), err)
	}
	return data, nil
}

// NewRecord assembles a Record from an envelope, encoding the payload
// canonically. The envelope must already be valid.
func NewRecord(env identity.Envelope[Payload]) (Record, error) {
	if err := env.Validate(); err != nil {
		return Record{}, err
	}
	data, err := CanonicalBytes(env.Payload)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Identity: env.Identity,
		Actor:    env.Actor,
		IssuedAt: env.IssuedAt,
		Kind:     env.Payload.EventKind(),
		Payload:  codec.RawMessage(data),
	}, nil
}

// DecodeRecord parses a wire record, rejecting kinds outside the
// catalog.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := codec.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding event record: %w", err)
	}
	if !rec.Kind.IsValid() {
		return Record{}, fmt.Errorf("unknown event kind %q", rec.Kind)
	}
	return rec, nil
}

// DecodePayload decodes a record's payload into the typed variant for
// its kind.
func DecodePayload(rec Record) (Payload, error) {
	decode := func(p Payload) (Payload, error) {
		if err := codec.Unmarshal(rec.Payload, p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", rec.Kind, err)
		}
		return p, nil
	}
	switch rec.Kind {
	case KindContentIngested:
		return decode(&ContentIngested{})
	case KindProcessingStarted:
		return decode(&ProcessingStarted{})
	case KindStageCompleted:
		return decode(&StageCompleted{})
	case KindProcessingCompleted:
		return decode(&ProcessingCompleted{})
	case KindContentPromoted:
		return decode(&ContentPromoted{})
	case KindContentQuarantined:
		return decode(&ContentQuarantined{})
	case KindContentReleased:
		return decode(&ContentReleased{})
	case KindStagingCleaned:
		return decode(&StagingCleaned{})
	case KindDocumentCreated:
		return decode(&DocumentCreated{})
	case KindWorkflowStarted:
		return decode(&WorkflowStarted{})
	case KindWorkflowTransitioned:
		return decode(&WorkflowTransitioned{})
	case KindWorkflowCompleted:
		return decode(&WorkflowCompleted{})
	case KindWorkflowCancelled:
		return decode(&WorkflowCancelled{})
	default:
		return nil, fmt.Errorf("unknown event kind %q", rec.Kind)
	}
}

// Subjects returns every subject a record fans out to: always the
// aggregate scope for its kind, the CID scope when the payload is
// content addressed, and the user scope when a user caused it.
func Subjects(rec Record, p Payload) []string {
	kind := string(rec.Kind)
	subjects := []string{subject.ForAggregate("document", kind)}
	if ca, ok := p.(ContentAddressed); ok && !ca.ContentCID().IsZero() {
		subjects = append(subjects, subject.ForCID(ca.ContentCID(), kind))
	}
	if rec.Actor.Kind == identity.ActorUser {
		subjects = append(subjects, subject.ForUser(rec.Actor.ID, kind))
	}
	return subjects
}

// Publisher fans records out over a message bus.
type Publisher struct {
	bus messaging.Bus
}

// NewPublisher returns a Publisher backed by bus.
func NewPublisher(bus messaging.Bus) *Publisher {
	return &Publisher{bus: bus}
}

// Publish encodes the envelope as a Record and publishes the same
// bytes to each of its subjects.
func (p *Publisher) Publish(ctx context.Context, env identity.Envelope[Payload]) error {
	return p.PublishWithIntegrity(ctx, env, nil)
}

// PublishWithIntegrity is Publish with an integrity ref attached to
// the record.
func (p *Publisher) PublishWithIntegrity(ctx context.Context, env identity.Envelope[Payload], ref *IntegrityRef) error {
	rec, err := NewRecord(env)
	if err != nil {
		return err
	}
	rec.Integrity = ref
	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding event record: %w", err)
	}
	for _, subj := range Subjects(rec, env.Payload) {
		if err := p.bus.Publish(ctx, subj, data); err != nil {
			return fmt.Errorf("publishing %s to %s: %w", rec.Kind, subj, err)
		}
	}
	return nil
}
