// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"errors"
	"fmt"

	"github.com/vellum-foundation/vellum/lib/identity"
)

// ErrTerminal rejects any command against an instance that already
// completed or was cancelled.
var ErrTerminal = errors.New("workflow instance is in a terminal state")

// UnknownInstanceError rejects a command naming an instance the engine
// does not hold.
type UnknownInstanceError struct {
	InstanceID identity.WorkflowInstanceID
}

func (e *UnknownInstanceError) Error() string {
	return fmt.Sprintf("unknown workflow instance %s", e.InstanceID)
}

// UnknownWorkflowError rejects a start command naming an unregistered
// definition.
type UnknownWorkflowError struct {
	Name string
}

func (e *UnknownWorkflowError) Error() string {
	return fmt.Sprintf("unknown workflow %q", e.Name)
}

// IllegalTransitionError rejects a transition absent from the
// definition's table.
type IllegalTransitionError struct {
	Workflow string
	From     Node
	To       Node
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("workflow %q has no transition %s -> %s", e.Workflow, e.From, e.To)
}

// PermissionDeniedError rejects a transition whose edge requires a
// permission the caller does not hold.
type PermissionDeniedError struct {
	Actor   identity.ActorID
	Missing Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("actor %s lacks permission %q", e.Actor, e.Missing)
}

// RuleViolationError rejects a transition vetoed by a business rule.
type RuleViolationError struct {
	Rule   string
	Detail string
}

func (e *RuleViolationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("business rule %q violated", e.Rule)
	}
	return fmt.Sprintf("business rule %q violated: %s", e.Rule, e.Detail)
}
