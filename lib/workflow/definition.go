// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "fmt"

// Transition is one edge in a definition's transition table. Requires
// lists the permissions a caller must hold; Rules names the business
// rules evaluated against the instance before the edge is taken.
type Transition struct {
	From     Node
	To       Node
	Requires []Permission
	Rules    []string
}

// Definition is a named workflow: a start node, a transition table,
// and the set of terminal nodes. Reaching a terminal node completes
// the instance.
type Definition struct {
	Name        string
	Description string
	Start       Node
	Transitions []Transition
	Terminals   map[Node]bool
}

// Validate checks the definition for structural soundness: a start
// node with at least one outgoing edge, at least one terminal node,
// no edge out of a terminal node, and every terminal reachable through
// the table.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow definition has no name")
	}
	if d.Start == "" {
		return fmt.Errorf("workflow %q has no start node", d.Name)
	}
	if len(d.Terminals) == 0 {
		return fmt.Errorf("workflow %q has no terminal nodes", d.Name)
	}
	fromStart := false
	for _, t := range d.Transitions {
		if d.Terminals[t.From] {
			return fmt.Errorf("workflow %q has an edge out of terminal node %q", d.Name, t.From)
		}
		if t.From == d.Start {
			fromStart = true
		}
	}
	if !fromStart {
		return fmt.Errorf("workflow %q start node %q has no outgoing edges", d.Name, d.Start)
	}

	reachable := map[Node]bool{d.Start: true}
	for changed := true; changed; {
		changed = false
		for _, t := range d.Transitions {
			if reachable[t.From] && !reachable[t.To] {
				reachable[t.To] = true
				changed = true
			}
		}
	}
	for node := range d.Terminals {
		if !reachable[node] {
			return fmt.Errorf("workflow %q terminal node %q is unreachable", d.Name, node)
		}
	}
	return nil
}

// Lookup returns the transition for (from, to), or false when the
// table has no such edge.
func (d Definition) Lookup(from, to Node) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// Terminal reports whether node completes the workflow.
func (d Definition) Terminal(node Node) bool { return d.Terminals[node] }

// ReviewDefinition is the built-in document review workflow: Start
// leads to InReview, which resolves to Approved or Rejected. Rejection
// requires a stated reason.
func ReviewDefinition() Definition {
	return Definition{
		Name:        "review",
		Description: "document review",
		Start:       NodeStart,
		Transitions: []Transition{
			{From: NodeStart, To: NodeInReview, Requires: []Permission{PermissionReview}},
			{From: NodeInReview, To: NodeApproved, Requires: []Permission{PermissionApprove}},
			{From: NodeInReview, To: NodeRejected, Requires: []Permission{PermissionReview}, Rules: []string{RuleReasonRequired}},
		},
		Terminals: map[Node]bool{NodeApproved: true, NodeRejected: true},
	}
}

// ApprovalDefinition is the built-in document approval workflow: Start
// leads to PendingApproval, which resolves to Published.
func ApprovalDefinition() Definition {
	return Definition{
		Name:        "approval",
		Description: "document approval and publication",
		Start:       NodeStart,
		Transitions: []Transition{
			{From: NodeStart, To: NodePendingApproval, Requires: []Permission{PermissionEdit}},
			{From: NodePendingApproval, To: NodePublished, Requires: []Permission{PermissionApprove, PermissionPublish}},
		},
		Terminals: map[Node]bool{NodePublished: true},
	}
}
