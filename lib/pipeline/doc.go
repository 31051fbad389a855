// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline executes processing jobs over staged content.
//
// A job is a planned list of stages (see objectstore.StartProcessing).
// Stage workers implement [StageFunc] and never publish events; the
// pipeline owns the job state machine, per-stage timeouts and
// retries, and every automated ContentPromoted and ContentQuarantined
// emission.
//
// Failure handling distinguishes two cases. A worker that returns a
// StageResult with Success=false has decided the content is bad: if
// the stage is required the content is quarantined, otherwise the
// failure is recorded and the job proceeds. A worker that returns an
// error (or times out) could not decide: the stage is retried up to
// its budget, after which a required stage fails the job without
// quarantine.
package pipeline
