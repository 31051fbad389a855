// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly. Real()
// provides standard library behavior; Fake() provides a deterministic
// clock that advances only when Advance is called.
//
// Staging retention, quarantine expiry, and stage timeouts are all
// clock-driven, so the fake clock is what lets those paths be tested
// without real waiting:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store := objectstore.New(buckets, objectstore.Options{Clock: c})
//	// ... ingest into staging ...
//	c.Advance(49 * time.Hour)
//	removed, _ := store.CleanupExpiredStaging(ctx)
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock it
// registers a pending waiter. Use WaitForTimers to block until a given
// number of waiters exist before calling Advance; this removes the
// race between timer registration and time advancement.
package clock
