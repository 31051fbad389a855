// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore provides domain-partitioned, content-addressed
// storage for document blobs.
//
// Content lives in one of three partition kinds. Staging receives raw
// ingests and is the only partition that permits promotion. Aggregate
// holds processed content bound to an aggregate type. Archive holds
// long-term copies under a compliance class and is compressed at
// rest. Partitions are strictly scoped: a CID present in one bucket
// is invisible to reads against another.
//
// The [Store] facade is the sole write path. It computes CIDs,
// records immutable metadata at ingest, enforces promotion rules and
// quarantine markers, tracks processing jobs, and publishes the
// corresponding domain events.
package objectstore
