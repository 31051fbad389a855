// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"strings"
)

// Message is one published event as seen by a subscriber.
type Message struct {
	// Subject is the full subject the message was published under
	// (not the pattern it matched).
	Subject string
	// Data is the serialized payload. Subscribers must treat it as
	// read-only; the same slice may be delivered to multiple
	// subscribers.
	Data []byte
}

// Bus is the publish/subscribe half of the transport contract.
type Bus interface {
	// Publish sends data under the given subject. Delivery is
	// at-most-once per subscriber; durable queue semantics are the
	// concrete transport's concern, not part of this contract.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers interest in subjects matching pattern.
	// Patterns use dotted tokens with "*" matching exactly one token
	// and a trailing ">" matching one or more. The subscription's
	// channel is closed when the subscription is cancelled or the
	// bus shuts down.
	Subscribe(ctx context.Context, pattern string) (*Subscription, error)
}

// Subscription is a live subscription to a subject pattern.
type Subscription struct {
	// C delivers matching messages. Closed on Unsubscribe and on bus
	// shutdown.
	C <-chan Message

	cancel func()
}

// Unsubscribe stops delivery and closes C. Safe to call more than
// once.
func (s *Subscription) Unsubscribe() { s.cancel() }

// Bucket is a named object bucket: flat key/value storage for content
// bytes. Keys are CID strings; values are immutable once written
// (writers of the same key write the same bytes, so last-write-wins
// is observationally identical to first-write).
type Bucket interface {
	// Put stores data under key, overwriting any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys with the given prefix (all keys when
	// prefix is empty), in an order that is stable within a single
	// call.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Buckets provides access to named buckets, creating them on first
// use.
type Buckets interface {
	Bucket(ctx context.Context, name string) (Bucket, error)
}

// MatchSubject reports whether a concrete subject matches a
// subscription pattern. Both are dotted token sequences; in the
// pattern, "*" matches exactly one token and a trailing ">" matches
// one or more remaining tokens.
func MatchSubject(pattern, subject string) bool {
	patternTokens := strings.Split(pattern, ".")
	subjectTokens := strings.Split(subject, ".")

	for i, token := range patternTokens {
		if token == ">" {
			// ">" must consume at least one token.
			return i == len(patternTokens)-1 && len(subjectTokens) > i
		}
		if i >= len(subjectTokens) {
			return false
		}
		if token != "*" && token != subjectTokens[i] {
			return false
		}
	}
	return len(subjectTokens) == len(patternTokens)
}
