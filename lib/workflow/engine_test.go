// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vellum-foundation/vellum/lib/clock"
	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/integrity"
	"github.com/vellum-foundation/vellum/messaging"
)

var engineStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *messaging.Memory, *clock.FakeClock, *integrity.MemoryChainStore) {
	t.Helper()
	mem := messaging.NewMemory()
	t.Cleanup(mem.Close)
	fake := clock.Fake(engineStart)
	chains := integrity.NewMemoryChainStore()
	engine, err := NewEngine(Options{
		Clock:     fake,
		Publisher: event.NewPublisher(mem),
		Chains:    chains,
		Permissions: StaticPermissions{
			"user:alice":  NewPermissionSet(PermissionReview, PermissionApprove, PermissionPublish, PermissionEdit),
			"user:intern": NewPermissionSet(PermissionView),
		},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.RegisterDefinition(ReviewDefinition()); err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	if err := engine.RegisterDefinition(ApprovalDefinition()); err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	return engine, mem, fake, chains
}

func startReview(t *testing.T, engine *Engine, doc identity.DocumentID) (Instance, identity.Envelope[StartWorkflow]) {
	t.Helper()
	cmd := identity.Root(StartWorkflow{Workflow: "review", DocumentID: doc}, identity.UserActor("alice"), engineStart)
	inst, err := engine.Start(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return inst, cmd
}

func transitionCmd(inst Instance, to Node, reason string, parent identity.Identity) identity.Envelope[TransitionWorkflow] {
	env, err := identity.CausedBy(TransitionWorkflow{
		InstanceID: inst.ID,
		To:         to,
		Reason:     reason,
	}, parent, identity.UserActor("alice"), engineStart)
	if err != nil {
		panic(err)
	}
	return env
}

func TestReviewWorkflowChain(t *testing.T) {
	engine, mem, fake, _ := newTestEngine(t)
	ctx := context.Background()

	sub, err := mem.Subscribe(ctx, "events.document.aggregate.document.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	doc := identity.NewDocumentID()
	inst, startCmd := startReview(t, engine, doc)
	if inst.CurrentNode != NodeStart || inst.Status != StatusRunning {
		t.Fatalf("instance after start: node=%s status=%s", inst.CurrentNode, inst.Status)
	}

	fake.Advance(time.Minute)
	if err := engine.Transition(ctx, transitionCmd(inst, NodeInReview, "", startCmd.Identity)); err != nil {
		t.Fatalf("Transition to in_review: %v", err)
	}
	fake.Advance(time.Minute)
	approve := transitionCmd(inst, NodeApproved, "looks good", startCmd.Identity)
	if err := engine.Transition(ctx, approve); err != nil {
		t.Fatalf("Transition to approved: %v", err)
	}

	got, err := engine.Instance(inst.ID)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if got.CurrentNode != NodeApproved {
		t.Errorf("CurrentNode = %s, want %s", got.CurrentNode, NodeApproved)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %s, want %s", got.Status, StatusCompleted)
	}

	chain, err := engine.Chain(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.Length() != 3 {
		t.Fatalf("chain length = %d, want 3", chain.Length())
	}
	for i, link := range chain.Links {
		if link.Integrity.Metadata.SequenceNumber != uint64(i) {
			t.Errorf("link %d sequence = %d", i, link.Integrity.Metadata.SequenceNumber)
		}
	}
	if chain.HeadCID != chain.Links[2].Integrity.EventCID {
		t.Error("head CID does not match the last link")
	}
	wantTypes := []integrity.EventType{integrity.EventStarted, integrity.EventTransitioned, integrity.EventCompleted}
	for i, want := range wantTypes {
		if got := chain.Links[i].Integrity.Metadata.EventType; got != want {
			t.Errorf("link %d event type = %s, want %s", i, got, want)
		}
	}
	if result := chain.Verify(fake.Now()); !result.Valid {
		t.Errorf("chain verification failed: %+v", result.Issues)
	}

	// Every published event inherits the start command's correlation
	// and names its own command as causation.
	kinds := map[event.Kind]event.Record{}
	for len(kinds) < 3 {
		select {
		case msg := <-sub.C:
			rec, err := event.DecodeRecord(msg.Data)
			if err != nil {
				t.Fatalf("DecodeRecord: %v", err)
			}
			kinds[rec.Kind] = rec
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, have %d", len(kinds))
		}
	}
	for kind, rec := range kinds {
		if rec.Identity.CorrelationID != startCmd.Identity.CorrelationID {
			t.Errorf("%s correlation = %s, want %s", kind, rec.Identity.CorrelationID, startCmd.Identity.CorrelationID)
		}
	}
	if rec := kinds[event.KindWorkflowStarted]; rec.Identity.CausationID != startCmd.Identity.MessageID {
		t.Errorf("started causation = %s, want start command %s", rec.Identity.CausationID, startCmd.Identity.MessageID)
	}
	if rec := kinds[event.KindWorkflowCompleted]; rec.Identity.CausationID != approve.Identity.MessageID {
		t.Errorf("completed causation = %s, want approve command %s", rec.Identity.CausationID, approve.Identity.MessageID)
	}
	if rec := kinds[event.KindWorkflowCompleted]; rec.Integrity == nil || rec.Integrity.Sequence != 2 {
		t.Errorf("completed integrity ref = %+v, want sequence 2", kinds[event.KindWorkflowCompleted].Integrity)
	}
}

func TestTransitionRejections(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	doc := identity.NewDocumentID()
	inst, startCmd := startReview(t, engine, doc)

	// Unknown instance.
	bogus := transitionCmd(Instance{ID: identity.NewWorkflowInstanceID()}, NodeInReview, "", startCmd.Identity)
	var unknown *UnknownInstanceError
	if err := engine.Transition(ctx, bogus); !errors.As(err, &unknown) {
		t.Errorf("unknown instance error = %v", err)
	}

	// Edge absent from the table.
	var illegal *IllegalTransitionError
	if err := engine.Transition(ctx, transitionCmd(inst, NodePublished, "", startCmd.Identity)); !errors.As(err, &illegal) {
		t.Errorf("illegal transition error = %v", err)
	}

	// Caller without the required permission.
	denied, err := identity.CausedBy(TransitionWorkflow{InstanceID: inst.ID, To: NodeInReview},
		startCmd.Identity, identity.UserActor("intern"), engineStart)
	if err != nil {
		t.Fatalf("CausedBy: %v", err)
	}
	var perm *PermissionDeniedError
	if err := engine.Transition(ctx, denied); !errors.As(err, &perm) {
		t.Errorf("permission error = %v", err)
	} else if perm.Missing != PermissionReview {
		t.Errorf("missing permission = %s, want %s", perm.Missing, PermissionReview)
	}

	// Rejections must not have mutated anything.
	got, err := engine.Instance(inst.ID)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if got.CurrentNode != NodeStart || got.Status != StatusRunning {
		t.Errorf("instance mutated by rejected commands: node=%s status=%s", got.CurrentNode, got.Status)
	}
	chain, err := engine.Chain(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.Length() != 1 {
		t.Errorf("chain length = %d, want 1", chain.Length())
	}
	trail, err := engine.AuditTrail(inst.ID)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) != 1 {
		t.Errorf("audit trail length = %d, want 1", len(trail))
	}
}

func TestBusinessRuleVeto(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, startCmd := startReview(t, engine, identity.NewDocumentID())
	if err := engine.Transition(ctx, transitionCmd(inst, NodeInReview, "", startCmd.Identity)); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	// Rejection without a reason violates reason_required.
	var violated *RuleViolationError
	if err := engine.Transition(ctx, transitionCmd(inst, NodeRejected, "", startCmd.Identity)); !errors.As(err, &violated) {
		t.Fatalf("rule violation error = %v", err)
	}
	if violated.Rule != RuleReasonRequired {
		t.Errorf("violated rule = %q, want %q", violated.Rule, RuleReasonRequired)
	}

	if err := engine.Transition(ctx, transitionCmd(inst, NodeRejected, "does not meet style guide", startCmd.Identity)); err != nil {
		t.Fatalf("rejection with reason: %v", err)
	}
	got, _ := engine.Instance(inst.ID)
	if got.CurrentNode != NodeRejected || got.Status != StatusCompleted {
		t.Errorf("instance = node %s status %s", got.CurrentNode, got.Status)
	}
}

func TestContextUpdatesApplyOnlyOnAcceptance(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, startCmd := startReview(t, engine, identity.NewDocumentID())

	env, err := identity.CausedBy(TransitionWorkflow{
		InstanceID:     inst.ID,
		To:             NodePublished,
		ContextUpdates: map[string]string{"priority": "high"},
	}, startCmd.Identity, identity.UserActor("alice"), engineStart)
	if err != nil {
		t.Fatalf("CausedBy: %v", err)
	}
	if err := engine.Transition(ctx, env); err == nil {
		t.Fatal("illegal transition accepted")
	}
	got, _ := engine.Instance(inst.ID)
	if _, ok := got.Context["priority"]; ok {
		t.Error("context updated by a rejected command")
	}

	env, err = identity.CausedBy(TransitionWorkflow{
		InstanceID:     inst.ID,
		To:             NodeInReview,
		ContextUpdates: map[string]string{"priority": "high"},
	}, startCmd.Identity, identity.UserActor("alice"), engineStart)
	if err != nil {
		t.Fatalf("CausedBy: %v", err)
	}
	if err := engine.Transition(ctx, env); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	got, _ = engine.Instance(inst.ID)
	if got.Context["priority"] != "high" {
		t.Errorf("context priority = %q, want high", got.Context["priority"])
	}
}

func TestCancelRunningInstance(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, startCmd := startReview(t, engine, identity.NewDocumentID())
	cancel, err := identity.CausedBy(CancelWorkflow{InstanceID: inst.ID, Reason: "superseded"},
		startCmd.Identity, identity.UserActor("alice"), engineStart)
	if err != nil {
		t.Fatalf("CausedBy: %v", err)
	}
	if err := engine.Cancel(ctx, cancel); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, _ := engine.Instance(inst.ID)
	if got.Status != StatusCancelled {
		t.Errorf("Status = %s, want %s", got.Status, StatusCancelled)
	}
	chain, err := engine.Chain(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.Length() != 2 {
		t.Errorf("chain length = %d, want 2", chain.Length())
	}
	if got := chain.Links[1].Integrity.Metadata.EventType; got != integrity.EventCancelled {
		t.Errorf("last link event type = %s", got)
	}
}

func TestCancelAfterTerminalFails(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, startCmd := startReview(t, engine, identity.NewDocumentID())
	if err := engine.Transition(ctx, transitionCmd(inst, NodeInReview, "", startCmd.Identity)); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := engine.Transition(ctx, transitionCmd(inst, NodeApproved, "", startCmd.Identity)); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	before, err := engine.Chain(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}

	cancel, err := identity.CausedBy(CancelWorkflow{InstanceID: inst.ID, Reason: "too late"},
		startCmd.Identity, identity.UserActor("alice"), engineStart)
	if err != nil {
		t.Fatalf("CausedBy: %v", err)
	}
	if err := engine.Cancel(ctx, cancel); !errors.Is(err, ErrTerminal) {
		t.Errorf("cancel after terminal = %v, want ErrTerminal", err)
	}
	if err := engine.Transition(ctx, transitionCmd(inst, NodeInReview, "", startCmd.Identity)); !errors.Is(err, ErrTerminal) {
		t.Errorf("transition after terminal = %v, want ErrTerminal", err)
	}

	after, err := engine.Chain(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if after.Length() != before.Length() || after.HeadCID != before.HeadCID {
		t.Error("chain changed by commands against a terminal instance")
	}
}

func TestStartUnknownWorkflow(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	cmd := identity.Root(StartWorkflow{Workflow: "escalation", DocumentID: identity.NewDocumentID()},
		identity.UserActor("alice"), engineStart)
	var unknown *UnknownWorkflowError
	if _, err := engine.Start(context.Background(), cmd); !errors.As(err, &unknown) {
		t.Errorf("start unknown workflow = %v", err)
	}
}

func TestDefinitionValidation(t *testing.T) {
	bad := Definition{
		Name:  "orphaned",
		Start: NodeStart,
		Transitions: []Transition{
			{From: NodeStart, To: NodeDraft},
		},
		Terminals: map[Node]bool{NodePublished: true},
	}
	if err := bad.Validate(); err == nil {
		t.Error("definition with unreachable terminal validated")
	}

	loop := Definition{
		Name:  "looping-terminal",
		Start: NodeStart,
		Transitions: []Transition{
			{From: NodeStart, To: NodeEnd},
			{From: NodeEnd, To: NodeStart},
		},
		Terminals: map[Node]bool{NodeEnd: true},
	}
	if err := loop.Validate(); err == nil {
		t.Error("definition with an edge out of a terminal validated")
	}

	for _, def := range []Definition{ReviewDefinition(), ApprovalDefinition()} {
		if err := def.Validate(); err != nil {
			t.Errorf("built-in %q failed validation: %v", def.Name, err)
		}
	}
}
