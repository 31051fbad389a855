// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging defines the transport contract the document
// domain is built against, and provides the in-process implementation
// used by services and tests.
//
// The contract has two halves. [Bus] carries serialized events:
// publish to a dotted subject, subscribe with a pattern that may end
// in the multi-token wildcard ">" or use the single-token wildcard
// "*". [Buckets] provides named object buckets with put/get/delete/
// list primitives; buckets are the physical manifestation of
// object-store partitions and keys are CID strings.
//
// The domain never imports a concrete broker client. A NATS or Kafka
// binding is an adapter that implements these interfaces; the
// in-process [Memory] transport implements both halves with process-
// local state and is the default for single-node deployments and all
// tests.
//
// Transport failures surface as [*BusError] so callers can
// distinguish transport trouble from domain rejections:
//
//	var busErr *messaging.BusError
//	if errors.As(err, &busErr) { ... }
package messaging
