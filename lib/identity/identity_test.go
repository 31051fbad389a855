// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"testing"
	"time"
)

var testTime = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func TestRootIdentityTriple(t *testing.T) {
	env := Root("start review", UserActor("alice"), testTime)

	id := env.Identity
	if id.MessageID.IsZero() {
		t.Fatal("root message has zero message ID")
	}
	if id.MessageID != id.CorrelationID || id.MessageID != id.CausationID {
		t.Errorf("root triple not equal: %+v", id)
	}
	if !id.IsRoot() {
		t.Error("IsRoot() = false for a root identity")
	}
}

func TestCausedByInheritsCorrelation(t *testing.T) {
	root := Root("command", UserActor("alice"), testTime)

	child, err := CausedBy("event", root.Identity, ServiceActor("engine"), testTime)
	if err != nil {
		t.Fatalf("CausedBy failed: %v", err)
	}

	if child.Identity.CorrelationID != root.Identity.CorrelationID {
		t.Error("child did not inherit correlation ID")
	}
	if child.Identity.CausationID != root.Identity.MessageID {
		t.Error("child causation is not the parent's message ID")
	}
	if child.Identity.MessageID == root.Identity.MessageID {
		t.Error("child reused the parent's message ID")
	}
	if child.Identity.IsRoot() {
		t.Error("caused message reports as root")
	}
}

func TestCausedByChainPreservesCorrelation(t *testing.T) {
	root := Root("m0", UserActor("alice"), testTime)
	e0, err := CausedBy("e0", root.Identity, ServiceActor("engine"), testTime)
	if err != nil {
		t.Fatal(err)
	}
	e1, err := CausedBy("e1", e0.Identity, ServiceActor("engine"), testTime)
	if err != nil {
		t.Fatal(err)
	}

	if e1.Identity.CorrelationID != root.Identity.MessageID {
		t.Error("grandchild lost the root correlation ID")
	}
	if e1.Identity.CausationID != e0.Identity.MessageID {
		t.Error("grandchild causation is not its direct parent")
	}
}

func TestCausedByRejectsMissingParent(t *testing.T) {
	_, err := CausedBy("event", Identity{}, UserActor("alice"), testTime)
	if !errors.Is(err, ErrMissingCorrelation) {
		t.Fatalf("err = %v, want ErrMissingCorrelation", err)
	}
}

func TestEnvelopeValidate(t *testing.T) {
	valid := Root("ok", UserActor("alice"), testTime)
	if err := valid.Validate(); err != nil {
		t.Errorf("valid envelope rejected: %v", err)
	}

	missingActor := valid
	missingActor.Actor = ActorID{}
	if err := missingActor.Validate(); !errors.Is(err, ErrMissingCorrelation) {
		t.Errorf("missing actor: err = %v, want ErrMissingCorrelation", err)
	}

	missingIdentity := valid
	missingIdentity.Identity.CausationID = MessageID{}
	if err := missingIdentity.Validate(); !errors.Is(err, ErrMissingCorrelation) {
		t.Errorf("missing causation: err = %v, want ErrMissingCorrelation", err)
	}
}

func TestActorString(t *testing.T) {
	cases := []struct {
		actor ActorID
		want  string
	}{
		{UserActor("alice"), "user:alice"},
		{ServiceActor("pipeline"), "service:pipeline"},
		{SystemActor(), "system"},
	}
	for _, c := range cases {
		if got := c.actor.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestMessageIDTextRoundtrip(t *testing.T) {
	original := NewMessageID()
	text, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var decoded MessageID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: %s != %s", decoded, original)
	}
}
