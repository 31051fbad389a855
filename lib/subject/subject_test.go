// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package subject

import (
	"strings"
	"testing"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

func TestSubjectShapes(t *testing.T) {
	content := cid.FromContent([]byte("subject test content"))
	prefix := content.ShortPrefix()

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"cid event", ForCID(content, "content_ingested"), "events.document.cid." + prefix + ".content_ingested"},
		{"user event", ForUser("alice", "workflow_started"), "events.document.user.alice.workflow_started"},
		{"aggregate event", ForAggregate("document", "content_promoted"), "events.document.aggregate.document.content_promoted"},
		{"cid wildcard", CIDEvents(content), "events.document.cid." + prefix + ".>"},
		{"user wildcard", UserEvents("alice"), "events.document.user.alice.>"},
		{"aggregate wildcard", AggregateEvents("document"), "events.document.aggregate.document.>"},
		{"all events", AllDocumentEvents(), "events.document.>"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestSubjectsAreDeterministic(t *testing.T) {
	content := cid.FromContent([]byte("same content"))
	first := ForCID(content, "content_ingested")
	second := ForCID(cid.FromContent([]byte("same content")), "content_ingested")
	if first != second {
		t.Errorf("same entity produced different subjects: %q != %q", first, second)
	}
}

func TestWildcardIsPrefixOfSubject(t *testing.T) {
	content := cid.FromContent([]byte("prefix check"))
	subject := ForCID(content, "content_quarantined")
	pattern := CIDEvents(content)

	base := strings.TrimSuffix(pattern, ">")
	if !strings.HasPrefix(subject, base) {
		t.Errorf("subject %q does not start with wildcard base %q", subject, base)
	}
}

func TestForActorScopes(t *testing.T) {
	if got := ForActor(identity.UserActor("bob"), "x"); got != "events.document.user.bob.x" {
		t.Errorf("user actor subject = %q", got)
	}
	if got := ForActor(identity.ServiceActor("pipeline"), "x"); got != "events.document.aggregate.service.x" {
		t.Errorf("service actor subject = %q", got)
	}
}
