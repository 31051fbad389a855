// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/messaging"
)

// TriggerRule starts a workflow in response to a domain event. The
// predicate, when non-nil, filters events of the matching kind.
// Triggering is idempotent per (document, workflow): a matching event
// never starts a second active instance of the same workflow on the
// same document.
type TriggerRule struct {
	Kind      event.Kind
	Predicate func(event.Payload) bool
	Workflow  string
}

// Statistics is the manager's aggregate view of workflow activity.
type Statistics struct {
	DocumentsWithWorkflows int
	ActiveInstances        int
	ByStatus               map[Status]int
}

// Manager coordinates workflow activity across documents: it owns the
// definition registry (seeding the built-in review and approval
// workflows), maintains the document-to-active-instances index,
// applies trigger rules to incoming domain events, and serves audit
// and statistics queries.
type Manager struct {
	engine *Engine
	logger *slog.Logger
	actor  identity.ActorID

	mu       sync.Mutex
	active   map[identity.DocumentID][]identity.WorkflowInstanceID
	all      map[identity.WorkflowInstanceID]identity.DocumentID
	triggers []TriggerRule
}

// NewManager returns a Manager over the engine with the built-in
// definitions registered. Workflows started by trigger rules run as
// the "workflow-manager" service actor.
func NewManager(engine *Engine, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, def := range []Definition{ReviewDefinition(), ApprovalDefinition()} {
		if err := engine.RegisterDefinition(def); err != nil {
			return nil, fmt.Errorf("registering built-in workflow %q: %w", def.Name, err)
		}
	}
	return &Manager{
		engine: engine,
		logger: logger,
		actor:  identity.ServiceActor("workflow-manager"),
		active: make(map[identity.DocumentID][]identity.WorkflowInstanceID),
		all:    make(map[identity.WorkflowInstanceID]identity.DocumentID),
	}, nil
}

// RegisterDefinition adds a definition to the underlying engine.
func (m *Manager) RegisterDefinition(def Definition) error {
	return m.engine.RegisterDefinition(def)
}

// AddTrigger registers a trigger rule. Rules are evaluated in
// registration order for every incoming event.
func (m *Manager) AddTrigger(rule TriggerRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, rule)
}

// Start starts a workflow through the engine and indexes the new
// instance under its document.
func (m *Manager) Start(ctx context.Context, env identity.Envelope[StartWorkflow]) (Instance, error) {
	inst, err := m.engine.Start(ctx, env)
	if err != nil {
		return Instance{}, err
	}
	m.mu.Lock()
	m.active[inst.DocumentID] = append(m.active[inst.DocumentID], inst.ID)
	m.all[inst.ID] = inst.DocumentID
	m.mu.Unlock()
	return inst, nil
}

// Transition forwards to the engine and drops the instance from the
// active index when the transition completes it.
func (m *Manager) Transition(ctx context.Context, env identity.Envelope[TransitionWorkflow]) error {
	if err := m.engine.Transition(ctx, env); err != nil {
		return err
	}
	m.pruneIfFinal(env.Payload.InstanceID)
	return nil
}

// Cancel forwards to the engine and drops the instance from the
// active index.
func (m *Manager) Cancel(ctx context.Context, env identity.Envelope[CancelWorkflow]) error {
	if err := m.engine.Cancel(ctx, env); err != nil {
		return err
	}
	m.pruneIfFinal(env.Payload.InstanceID)
	return nil
}

func (m *Manager) pruneIfFinal(id identity.WorkflowInstanceID) {
	inst, err := m.engine.Instance(id)
	if err != nil || !inst.Status.Final() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.active[inst.DocumentID]
	kept := ids[:0]
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(m.active, inst.DocumentID)
	} else {
		m.active[inst.DocumentID] = kept
	}
}

// Instance returns a copy of the instance with the given ID.
func (m *Manager) Instance(id identity.WorkflowInstanceID) (Instance, error) {
	return m.engine.Instance(id)
}

// AuditTrail returns the instance's audit trail.
func (m *Manager) AuditTrail(id identity.WorkflowInstanceID) ([]AuditEntry, error) {
	return m.engine.AuditTrail(id)
}

// ActiveForDocument returns the document's active instances.
func (m *Manager) ActiveForDocument(doc identity.DocumentID) []Instance {
	m.mu.Lock()
	ids := make([]identity.WorkflowInstanceID, len(m.active[doc]))
	copy(ids, m.active[doc])
	m.mu.Unlock()

	out := make([]Instance, 0, len(ids))
	for _, id := range ids {
		if inst, err := m.engine.Instance(id); err == nil {
			out = append(out, inst)
		}
	}
	return out
}

// Stats returns the manager's aggregate counts across every instance
// it has started.
func (m *Manager) Stats() Statistics {
	m.mu.Lock()
	stats := Statistics{
		DocumentsWithWorkflows: len(m.active),
		ByStatus:               make(map[Status]int),
	}
	for _, ids := range m.active {
		stats.ActiveInstances += len(ids)
	}
	ids := make([]identity.WorkflowInstanceID, 0, len(m.all))
	for id := range m.all {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if inst, err := m.engine.Instance(id); err == nil {
			stats.ByStatus[inst.Status]++
		}
	}
	return stats
}

// HandleEvent applies the trigger rules to one decoded domain event,
// starting workflows caused by the event's identity. It returns the
// IDs of the instances it started.
func (m *Manager) HandleEvent(ctx context.Context, rec event.Record, p event.Payload) ([]identity.WorkflowInstanceID, error) {
	doc, ok := documentIDOf(p)
	if !ok {
		return nil, nil
	}

	m.mu.Lock()
	rules := make([]TriggerRule, len(m.triggers))
	copy(rules, m.triggers)
	m.mu.Unlock()

	var started []identity.WorkflowInstanceID
	for _, rule := range rules {
		if rule.Kind != p.EventKind() {
			continue
		}
		if rule.Predicate != nil && !rule.Predicate(p) {
			continue
		}
		if m.hasActive(doc, rule.Workflow) {
			continue
		}
		cmd := StartWorkflow{Workflow: rule.Workflow, DocumentID: doc}
		env, err := identity.CausedBy(cmd, rec.Identity, m.actor, rec.IssuedAt)
		if err != nil {
			return started, err
		}
		inst, err := m.Start(ctx, env)
		if err != nil {
			return started, fmt.Errorf("trigger for %s on document %s: %w", rule.Workflow, doc, err)
		}
		m.logger.Info("workflow triggered",
			"workflow", rule.Workflow, "document", doc.String(),
			"instance", inst.ID.String(), "event", string(p.EventKind()))
		started = append(started, inst.ID)
	}
	return started, nil
}

// hasActive reports whether the document already has an active
// instance of the named workflow.
func (m *Manager) hasActive(doc identity.DocumentID, workflow string) bool {
	m.mu.Lock()
	ids := make([]identity.WorkflowInstanceID, len(m.active[doc]))
	copy(ids, m.active[doc])
	m.mu.Unlock()
	for _, id := range ids {
		inst, err := m.engine.Instance(id)
		if err == nil && inst.Workflow == workflow && !inst.Status.Final() {
			return true
		}
	}
	return false
}

// Run subscribes to the document aggregate event stream and feeds it
// through the trigger rules until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, bus messaging.Bus) error {
	sub, err := bus.Subscribe(ctx, "events.document.aggregate.document.>")
	if err != nil {
		return fmt.Errorf("subscribing to document events: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			rec, err := event.DecodeRecord(msg.Data)
			if err != nil {
				m.logger.Warn("skipping undecodable event", "subject", msg.Subject, "error", err)
				continue
			}
			p, err := event.DecodePayload(rec)
			if err != nil {
				m.logger.Warn("skipping event with undecodable payload", "subject", msg.Subject, "error", err)
				continue
			}
			if _, err := m.HandleEvent(ctx, rec, p); err != nil {
				m.logger.Error("workflow trigger failed", "subject", msg.Subject, "error", err)
			}
		}
	}
}

// documentIDOf extracts the document a payload concerns, for payload
// kinds that carry one.
func documentIDOf(p event.Payload) (identity.DocumentID, bool) {
	scoped, ok := p.(event.DocumentScoped)
	if !ok {
		return identity.DocumentID{}, false
	}
	doc := scoped.Document()
	if doc.IsZero() {
		return identity.DocumentID{}, false
	}
	return doc, true
}
