// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Bucket.Get for absent keys.
var ErrKeyNotFound = errors.New("key not found in bucket")

// ErrClosed is returned by operations on a transport that has been
// shut down.
var ErrClosed = errors.New("transport is closed")

// BusError is a structured transport failure. Callers use errors.As
// to distinguish transport trouble (retryable, operational) from
// domain rejections (caller bugs):
//
//	var busErr *messaging.BusError
//	if errors.As(err, &busErr) { ... }
type BusError struct {
	// Op is the operation that failed: "publish", "subscribe",
	// "bucket.put", "bucket.get", "bucket.delete", "bucket.list".
	Op string
	// Subject is the subject or bucket/key involved, when known.
	Subject string
	// Err is the underlying cause.
	Err error
}

func (e *BusError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }
