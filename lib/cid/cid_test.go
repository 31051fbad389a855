// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package cid

import (
	"strings"
	"testing"
)

func TestFromContentDeterministic(t *testing.T) {
	data := []byte("Mock PDF content for ingestion demo")
	first := FromContent(data)
	second := FromContent(data)
	if first != second {
		t.Fatalf("same bytes produced different CIDs: %s != %s", first, second)
	}
}

func TestFromContentDistinguishesBytes(t *testing.T) {
	a := FromContent([]byte("payload a"))
	b := FromContent([]byte("payload b"))
	if a == b {
		t.Fatal("different bytes produced the same CID")
	}
}

func TestEmptyContentHasWellDefinedCID(t *testing.T) {
	empty := FromContent(nil)
	if empty.IsZero() {
		t.Fatal("empty content must not hash to the zero CID")
	}
	if empty != FromContent([]byte{}) {
		t.Fatal("nil and empty slice must hash identically")
	}
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("identical bytes")
	if FromContent(data) == FromEventPayload(data) {
		t.Fatal("content and event domains must not collide for identical bytes")
	}
}

func TestStringForm(t *testing.T) {
	c := FromContent([]byte("hello"))
	s := c.String()
	if !strings.HasPrefix(s, "b3:") {
		t.Errorf("String() = %q, want b3: prefix", s)
	}
	if len(s) != len("b3:")+64 {
		t.Errorf("String() length = %d, want %d", len(s), len("b3:")+64)
	}
	if s != strings.ToLower(s) {
		t.Errorf("String() = %q, want lowercase hex", s)
	}
}

func TestShortPrefix(t *testing.T) {
	c := FromContent([]byte("hello"))
	short := c.ShortPrefix()
	if len(short) != 12 {
		t.Errorf("ShortPrefix() length = %d, want 12", len(short))
	}
	if !strings.Contains(c.String(), short) {
		t.Errorf("ShortPrefix() %q is not a prefix of the digest in %q", short, c.String())
	}
}

func TestParseRoundtrip(t *testing.T) {
	original := FromContent([]byte("roundtrip"))
	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed != original {
		t.Fatalf("roundtrip mismatch: %s != %s", parsed, original)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"b3:",
		"b3:zzzz",
		"b3:abcd",
		"sha256:" + strings.Repeat("a", 64),
		strings.Repeat("a", 64),
	}
	for _, input := range cases {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestZeroCID(t *testing.T) {
	var zero CID
	if !zero.IsZero() {
		t.Error("zero value IsZero() = false")
	}
	if zero.String() != "" {
		t.Errorf("zero String() = %q, want empty", zero.String())
	}
	if FromContent([]byte("x")).IsZero() {
		t.Error("computed CID reported as zero")
	}
}

func TestTextMarshalRoundtrip(t *testing.T) {
	original := FromEventPayload([]byte("event payload"))
	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var decoded CID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != original {
		t.Fatalf("text roundtrip mismatch: %s != %s", decoded, original)
	}

	// Empty text decodes to the zero CID (absent predecessor).
	var zero CID
	if err := zero.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !zero.IsZero() {
		t.Error("UnmarshalText(nil) did not produce zero CID")
	}
}
