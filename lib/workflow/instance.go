// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"time"

	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/integrity"
)

// Status is the lifecycle state of an instance. Everything except
// Running is final: a finished instance accepts no further commands.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Final reports whether the status accepts no further commands.
func (s Status) Final() bool {
	return s != StatusRunning && s != ""
}

// Instance is one running (or finished) workflow on a document.
type Instance struct {
	ID          identity.WorkflowInstanceID `json:"id"`
	Workflow    string                      `json:"workflow"`
	DocumentID  identity.DocumentID         `json:"document_id"`
	CurrentNode Node                        `json:"current_node"`
	Status      Status                      `json:"status"`
	Context     map[string]string           `json:"context,omitempty"`
	CreatedBy   identity.ActorID            `json:"created_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (inst *Instance) clone() Instance {
	out := *inst
	out.Context = make(map[string]string, len(inst.Context))
	for k, v := range inst.Context {
		out.Context[k] = v
	}
	return out
}

// AuditEntry is one row of an instance's audit trail. Every accepted
// command appends exactly one entry.
type AuditEntry struct {
	At        time.Time           `json:"at"`
	Actor     identity.ActorID    `json:"actor"`
	EventType integrity.EventType `json:"event_type"`
	From      Node                `json:"from,omitempty"`
	To        Node                `json:"to,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}
