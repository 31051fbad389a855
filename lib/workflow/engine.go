// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vellum-foundation/vellum/lib/clock"
	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/integrity"
)

// PermissionResolver maps an actor to the permission set the engine
// checks transitions against.
type PermissionResolver interface {
	PermissionsFor(actor identity.ActorID) PermissionSet
}

// StaticPermissions resolves permissions from a fixed table keyed by
// actor string. Service and system actors are trusted automation and
// resolve to admin unless the table says otherwise.
type StaticPermissions map[string]PermissionSet

func (s StaticPermissions) PermissionsFor(actor identity.ActorID) PermissionSet {
	if set, ok := s[actor.String()]; ok {
		return set
	}
	if actor.Kind == identity.ActorService || actor.Kind == identity.ActorSystem {
		return NewPermissionSet(PermissionAdmin)
	}
	return PermissionSet{}
}

// Options configures an Engine. Clock, Publisher, and Chains are
// required; zero Permissions defaults to an empty StaticPermissions
// table (users hold nothing, automation holds admin).
type Options struct {
	Clock       clock.Clock
	Publisher   *event.Publisher
	Chains      integrity.ChainStore
	Permissions PermissionResolver
	Logger      *slog.Logger
}

// Engine executes workflow commands. Every accepted command extends
// the instance's integrity chain and publishes one event; every
// rejected command leaves the instance, its chain, and its audit trail
// untouched.
type Engine struct {
	clock       clock.Clock
	publisher   *event.Publisher
	chains      integrity.ChainStore
	permissions PermissionResolver
	logger      *slog.Logger

	mu          sync.Mutex
	definitions map[string]Definition
	rules       map[string]Rule
	instances   map[identity.WorkflowInstanceID]*Instance
	audit       map[identity.WorkflowInstanceID][]AuditEntry
	locks       map[identity.WorkflowInstanceID]*sync.Mutex
}

// NewEngine returns an Engine with the built-in business rules
// registered and no definitions.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Clock == nil {
		return nil, fmt.Errorf("workflow engine requires a clock")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("workflow engine requires an event publisher")
	}
	if opts.Chains == nil {
		return nil, fmt.Errorf("workflow engine requires a chain store")
	}
	if opts.Permissions == nil {
		opts.Permissions = StaticPermissions{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		clock:       opts.Clock,
		publisher:   opts.Publisher,
		chains:      opts.Chains,
		permissions: opts.Permissions,
		logger:      opts.Logger,
		definitions: make(map[string]Definition),
		rules:       builtinRules(),
		instances:   make(map[identity.WorkflowInstanceID]*Instance),
		audit:       make(map[identity.WorkflowInstanceID][]AuditEntry),
		locks:       make(map[identity.WorkflowInstanceID]*sync.Mutex),
	}, nil
}

// RegisterDefinition adds a validated definition under its name,
// replacing any previous definition with that name.
func (e *Engine) RegisterDefinition(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.definitions[def.Name] = def
	return nil
}

// RegisterRule adds a named business rule, replacing any previous rule
// with that name.
func (e *Engine) RegisterRule(name string, rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[name] = rule
}

// Definition returns the registered definition with the given name.
func (e *Engine) Definition(name string) (Definition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.definitions[name]
	return def, ok
}

// Instance returns a copy of the instance with the given ID.
func (e *Engine) Instance(id identity.WorkflowInstanceID) (Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return Instance{}, &UnknownInstanceError{InstanceID: id}
	}
	return inst.clone(), nil
}

// AuditTrail returns a copy of the instance's audit trail in append
// order.
func (e *Engine) AuditTrail(id identity.WorkflowInstanceID) ([]AuditEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[id]; !ok {
		return nil, &UnknownInstanceError{InstanceID: id}
	}
	trail := make([]AuditEntry, len(e.audit[id]))
	copy(trail, e.audit[id])
	return trail, nil
}

// Chain loads the instance's integrity chain from the chain store.
func (e *Engine) Chain(ctx context.Context, id identity.WorkflowInstanceID) (*integrity.Chain, error) {
	return e.chains.Load(ctx, id)
}

// instanceLock returns the mutex serializing commands against one
// instance, creating it on first use.
func (e *Engine) instanceLock(id identity.WorkflowInstanceID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// Start accepts a StartWorkflow command: it creates an instance at the
// definition's start node, opens its integrity chain with a
// WorkflowStarted genesis link, and publishes the event.
func (e *Engine) Start(ctx context.Context, env identity.Envelope[StartWorkflow]) (Instance, error) {
	if err := env.Validate(); err != nil {
		return Instance{}, err
	}
	cmd := env.Payload
	if cmd.DocumentID.IsZero() {
		return Instance{}, fmt.Errorf("start command has no document ID")
	}

	e.mu.Lock()
	def, ok := e.definitions[cmd.Workflow]
	e.mu.Unlock()
	if !ok {
		return Instance{}, &UnknownWorkflowError{Name: cmd.Workflow}
	}

	now := e.clock.Now()
	inst := &Instance{
		ID:          identity.NewWorkflowInstanceID(),
		Workflow:    def.Name,
		DocumentID:  cmd.DocumentID,
		CurrentNode: def.Start,
		Status:      StatusRunning,
		Context:     make(map[string]string, len(cmd.InitialContext)),
		CreatedBy:   env.Actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for k, v := range cmd.InitialContext {
		inst.Context[k] = v
	}

	payload := event.WorkflowStarted{
		InstanceID: inst.ID,
		Workflow:   inst.Workflow,
		DocumentID: inst.DocumentID,
		Node:       string(inst.CurrentNode),
		StartedAt:  now,
	}
	chain := integrity.NewChain(inst.ID, inst.DocumentID)
	link, err := e.recordOnChain(ctx, chain, payload, env.Actor, inst.CurrentNode, integrity.EventStarted)
	if err != nil {
		return Instance{}, err
	}

	e.mu.Lock()
	e.instances[inst.ID] = inst
	e.audit[inst.ID] = append(e.audit[inst.ID], AuditEntry{
		At:        now,
		Actor:     env.Actor,
		EventType: integrity.EventStarted,
		To:        inst.CurrentNode,
	})
	e.mu.Unlock()

	e.publish(ctx, payload, env.Identity, env.Actor, link)
	return inst.clone(), nil
}

// Transition accepts a TransitionWorkflow command against a running
// instance. Rejections happen before any side effect; an accepted
// transition extends the chain, publishes WorkflowTransitioned (or
// WorkflowCompleted when the target node is terminal), applies the
// context updates, and moves the instance.
func (e *Engine) Transition(ctx context.Context, env identity.Envelope[TransitionWorkflow]) error {
	if err := env.Validate(); err != nil {
		return err
	}
	cmd := env.Payload

	lock := e.instanceLock(cmd.InstanceID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	inst, ok := e.instances[cmd.InstanceID]
	var def Definition
	if ok {
		def = e.definitions[inst.Workflow]
	}
	e.mu.Unlock()
	if !ok {
		return &UnknownInstanceError{InstanceID: cmd.InstanceID}
	}
	if inst.Status.Final() {
		return ErrTerminal
	}

	transition, ok := def.Lookup(inst.CurrentNode, cmd.To)
	if !ok {
		return &IllegalTransitionError{Workflow: def.Name, From: inst.CurrentNode, To: cmd.To}
	}

	perms := e.permissions.PermissionsFor(env.Actor)
	for _, required := range transition.Requires {
		if !perms.Has(required) {
			return &PermissionDeniedError{Actor: env.Actor, Missing: required}
		}
	}

	for _, name := range transition.Rules {
		e.mu.Lock()
		rule, ok := e.rules[name]
		e.mu.Unlock()
		if !ok {
			return &RuleViolationError{Rule: name, Detail: "rule not registered"}
		}
		if err := rule(inst.clone(), cmd.ContextUpdates, cmd.Reason); err != nil {
			return &RuleViolationError{Rule: name, Detail: err.Error()}
		}
	}

	chain, err := e.chains.Load(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("loading chain for instance %s: %w", inst.ID, err)
	}

	now := e.clock.Now()
	from := inst.CurrentNode
	terminal := def.Terminal(cmd.To)

	var payload event.Payload
	eventType := integrity.EventTransitioned
	if terminal {
		eventType = integrity.EventCompleted
		payload = event.WorkflowCompleted{
			InstanceID:  inst.ID,
			DocumentID:  inst.DocumentID,
			FinalNode:   string(cmd.To),
			CompletedAt: now,
		}
	} else {
		payload = event.WorkflowTransitioned{
			InstanceID:     inst.ID,
			DocumentID:     inst.DocumentID,
			From:           string(from),
			To:             string(cmd.To),
			Reason:         cmd.Reason,
			TransitionedAt: now,
		}
	}

	link, err := e.recordOnChain(ctx, chain, payload, env.Actor, cmd.To, eventType)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for k, v := range cmd.ContextUpdates {
		inst.Context[k] = v
	}
	inst.CurrentNode = cmd.To
	inst.UpdatedAt = now
	if terminal {
		inst.Status = StatusCompleted
	}
	e.audit[inst.ID] = append(e.audit[inst.ID], AuditEntry{
		At:        now,
		Actor:     env.Actor,
		EventType: eventType,
		From:      from,
		To:        cmd.To,
		Reason:    cmd.Reason,
	})
	e.mu.Unlock()

	e.publish(ctx, payload, env.Identity, env.Actor, link)
	return nil
}

// Cancel accepts a CancelWorkflow command against any non-final
// instance, regardless of its current node.
func (e *Engine) Cancel(ctx context.Context, env identity.Envelope[CancelWorkflow]) error {
	if err := env.Validate(); err != nil {
		return err
	}
	cmd := env.Payload

	lock := e.instanceLock(cmd.InstanceID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	inst, ok := e.instances[cmd.InstanceID]
	e.mu.Unlock()
	if !ok {
		return &UnknownInstanceError{InstanceID: cmd.InstanceID}
	}
	if inst.Status.Final() {
		return ErrTerminal
	}

	chain, err := e.chains.Load(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("loading chain for instance %s: %w", inst.ID, err)
	}

	now := e.clock.Now()
	payload := event.WorkflowCancelled{
		InstanceID:  inst.ID,
		DocumentID:  inst.DocumentID,
		Reason:      cmd.Reason,
		CancelledAt: now,
	}
	link, err := e.recordOnChain(ctx, chain, payload, env.Actor, inst.CurrentNode, integrity.EventCancelled)
	if err != nil {
		return err
	}

	e.mu.Lock()
	inst.Status = StatusCancelled
	inst.UpdatedAt = now
	e.audit[inst.ID] = append(e.audit[inst.ID], AuditEntry{
		At:        now,
		Actor:     env.Actor,
		EventType: integrity.EventCancelled,
		From:      inst.CurrentNode,
		Reason:    cmd.Reason,
	})
	e.mu.Unlock()

	e.publish(ctx, payload, env.Identity, env.Actor, link)
	return nil
}

// recordOnChain appends the payload's canonical bytes to the chain and
// persists the chain. The returned integrity link ties the published
// event to its chain position.
func (e *Engine) recordOnChain(ctx context.Context, chain *integrity.Chain, payload event.Payload, actor identity.ActorID, node Node, eventType integrity.EventType) (integrity.EventIntegrity, error) {
	data, err := event.CanonicalBytes(payload)
	if err != nil {
		return integrity.EventIntegrity{}, err
	}
	link, err := chain.Extend(data, actor, string(node), eventType, e.clock.Now())
	if err != nil {
		return integrity.EventIntegrity{}, fmt.Errorf("extending chain for instance %s: %w", chain.InstanceID, err)
	}
	if err := e.chains.Save(ctx, chain); err != nil {
		return integrity.EventIntegrity{}, fmt.Errorf("saving chain for instance %s: %w", chain.InstanceID, err)
	}
	return link, nil
}

// publish emits the event caused by the command envelope, carrying its
// chain position. Publish failures are logged; the chain is the
// canonical record and has already been saved.
func (e *Engine) publish(ctx context.Context, payload event.Payload, cause identity.Identity, actor identity.ActorID, link integrity.EventIntegrity) {
	env, err := identity.CausedBy[event.Payload](payload, cause, actor, e.clock.Now())
	if err != nil {
		e.logger.Warn("dropping workflow event with broken causation",
			"kind", payload.EventKind(), "error", err)
		return
	}
	ref := &event.IntegrityRef{
		EventCID:       link.EventCID,
		PredecessorCID: link.PredecessorCID,
		Sequence:       link.Metadata.SequenceNumber,
	}
	if err := e.publisher.PublishWithIntegrity(ctx, env, ref); err != nil {
		e.logger.Warn("workflow event publish failed",
			"kind", payload.EventKind(), "error", err)
	}
}
