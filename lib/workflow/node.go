// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

// Node names a position in a workflow graph. Definitions decide which
// nodes they use and which of them are terminal; the constants below
// cover the document lifecycle vocabulary shared by the built-in
// definitions.
type Node string

const (
	NodeStart           Node = "start"
	NodeDraft           Node = "draft"
	NodeInReview        Node = "in_review"
	NodeUnderRevision   Node = "under_revision"
	NodeApproved        Node = "approved"
	NodeRejected        Node = "rejected"
	NodePendingApproval Node = "pending_approval"
	NodePublished       Node = "published"
	NodeArchived        Node = "archived"
	NodeDeleted         Node = "deleted"
	NodeEnd             Node = "end"
)

func (n Node) String() string { return string(n) }

// Permission is one grant in a caller's permission set. Edges name the
// permissions they require; the engine checks them before any state
// change.
type Permission string

const (
	PermissionView    Permission = "view"
	PermissionEdit    Permission = "edit"
	PermissionReview  Permission = "review"
	PermissionApprove Permission = "approve"
	PermissionPublish Permission = "publish"
	PermissionDelete  Permission = "delete"
	PermissionArchive Permission = "archive"
	PermissionAdmin   Permission = "admin"
)

// PermissionSet is the grants held by one caller. Admin satisfies
// every requirement.
type PermissionSet map[Permission]bool

// NewPermissionSet builds a set from the given grants.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// Has reports whether the set satisfies the given permission.
func (s PermissionSet) Has(p Permission) bool {
	return s[p] || s[PermissionAdmin]
}

// HasAll reports whether the set satisfies every given permission.
func (s PermissionSet) HasAll(perms []Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}
