// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "github.com/vellum-foundation/vellum/lib/identity"

// StartWorkflow requests a new instance of a named workflow on a
// document. The engine accepts it only inside an identity envelope.
type StartWorkflow struct {
	Workflow       string              `json:"workflow"`
	DocumentID     identity.DocumentID `json:"document_id"`
	InitialContext map[string]string   `json:"initial_context,omitempty"`
}

// TransitionWorkflow requests that an instance move to another node.
// ContextUpdates are merged into the instance context when the
// transition is accepted; rejected transitions leave it untouched.
type TransitionWorkflow struct {
	InstanceID     identity.WorkflowInstanceID `json:"instance_id"`
	To             Node                        `json:"to"`
	Reason         string                      `json:"reason,omitempty"`
	ContextUpdates map[string]string           `json:"context_updates,omitempty"`
}

// CancelWorkflow requests cancellation of a running instance.
type CancelWorkflow struct {
	InstanceID identity.WorkflowInstanceID `json:"instance_id"`
	Reason     string                      `json:"reason,omitempty"`
}
