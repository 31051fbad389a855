// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"testing"
)

func TestMatchSubject(t *testing.T) {
	cases := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"events.document.>", "events.document.cid.abc.content_ingested", true},
		{"events.document.>", "events.document", false},
		{"events.document.cid.abc.*", "events.document.cid.abc.content_ingested", true},
		{"events.document.cid.abc.*", "events.document.cid.abc.a.b", false},
		{"events.document.cid.abc.content_ingested", "events.document.cid.abc.content_ingested", true},
		{"events.document.cid.abc.content_ingested", "events.document.cid.abc.content_promoted", false},
		{"events.*.cid.abc.>", "events.document.cid.abc.x", true},
		{">", "anything.at.all", true},
		{"events.document", "events.document.extra", false},
	}
	for _, c := range cases {
		if got := MatchSubject(c.pattern, c.subject); got != c.want {
			t.Errorf("MatchSubject(%q, %q) = %v, want %v", c.pattern, c.subject, got, c.want)
		}
	}
}

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	sub, err := transport.Subscribe(ctx, "events.document.>")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	if err := transport.Publish(ctx, "events.document.cid.abc.content_ingested", []byte("payload")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	message := <-sub.C
	if message.Subject != "events.document.cid.abc.content_ingested" {
		t.Errorf("Subject = %q", message.Subject)
	}
	if string(message.Data) != "payload" {
		t.Errorf("Data = %q", message.Data)
	}
}

func TestPublishSkipsNonMatching(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	sub, err := transport.Subscribe(ctx, "events.document.user.alice.>")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := transport.Publish(ctx, "events.document.user.bob.workflow_started", []byte("x")); err != nil {
		t.Fatal(err)
	}

	select {
	case message := <-sub.C:
		t.Fatalf("received non-matching message %q", message.Subject)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	sub, err := transport.Subscribe(ctx, ">")
	if err != nil {
		t.Fatal(err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe() // safe to call twice

	if _, open := <-sub.C; open {
		t.Fatal("channel still open after Unsubscribe")
	}
}

func TestCloseFailsFurtherOperations(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	transport.Close()

	err := transport.Publish(ctx, "x", nil)
	var busErr *BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("err = %v, want *BusError", err)
	}
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed cause", err)
	}
}

func TestBucketRoundtrip(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	bucket, err := transport.Bucket(ctx, "document-staging")
	if err != nil {
		t.Fatal(err)
	}

	if err := bucket.Put(ctx, "b3:abc", []byte("bytes")); err != nil {
		t.Fatal(err)
	}
	data, err := bucket.Get(ctx, "b3:abc")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "bytes" {
		t.Errorf("Get = %q, want %q", data, "bytes")
	}

	if _, err := bucket.Get(ctx, "b3:missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get absent key: err = %v, want ErrKeyNotFound", err)
	}

	if err := bucket.Delete(ctx, "b3:abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := bucket.Get(ctx, "b3:abc"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrKeyNotFound", err)
	}
	// Deleting an absent key is not an error.
	if err := bucket.Delete(ctx, "b3:abc"); err != nil {
		t.Errorf("Delete absent key: %v", err)
	}
}

func TestBucketIsolation(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	staging, _ := transport.Bucket(ctx, "document-staging")
	aggregate, _ := transport.Bucket(ctx, "document-document-aggregate")

	if err := staging.Put(ctx, "b3:abc", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := aggregate.Get(ctx, "b3:abc"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("key leaked across buckets: err = %v", err)
	}
}

func TestBucketListStableAndPrefixed(t *testing.T) {
	ctx := context.Background()
	transport := NewMemory()
	defer transport.Close()

	bucket, _ := transport.Bucket(ctx, "b")
	for _, key := range []string{"b3:ccc", "b3:aaa", "b3:bbb", "other:zzz"} {
		if err := bucket.Put(ctx, key, []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := bucket.List(ctx, "b3:")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b3:aaa", "b3:bbb", "b3:ccc"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("List = %v, want %v", keys, want)
		}
	}
}
