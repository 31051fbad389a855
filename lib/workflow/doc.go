// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow drives document lifecycle state machines.
//
// A Definition is a named transition table over lifecycle nodes, with
// permission requirements and business rules attached per edge. The
// Engine accepts StartWorkflow, TransitionWorkflow, and CancelWorkflow
// commands wrapped in identity envelopes, enforces the definition, and
// records every accepted command as a hash-linked event on the
// instance's integrity chain before publishing it. The Manager sits
// above the engine: it registers definitions, starts workflows in
// response to domain events via trigger rules, and tracks which
// documents have active instances.
//
// Command processing per instance is serialized; rejected commands
// mutate nothing.
package workflow
