// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/clock"
	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/objectstore"
)

// ErrCapacityExceeded is returned when the pipeline has no free
// worker slot for a new job.
var ErrCapacityExceeded = errors.New("pipeline at capacity")

// ContentBusyError reports that a job for the same CID is already in
// flight. At most one job runs per CID.
type ContentBusyError struct {
	CID cid.CID
}

func (e *ContentBusyError) Error() string {
	return fmt.Sprintf("content %s already has a job in flight", e.CID.ShortPrefix())
}

// StageFunc is the uniform stage worker contract. The worker receives
// the content, its CID, and every prior stage result, and either
// returns a definitive StageResult or an error when it could not
// decide (the pipeline retries those within the stage budget).
type StageFunc func(ctx context.Context, c cid.CID, data []byte, prior []event.StageResult) (event.StageResult, error)

// retryBackoff is the wait between stage attempts, scaled by attempt
// number.
const retryBackoff = 500 * time.Millisecond

// Options configures a Pipeline.
type Options struct {
	Clock     clock.Clock
	Publisher *event.Publisher
	Logger    *slog.Logger

	// MaxConcurrent bounds simultaneously running jobs. Defaults
	// to 4.
	MaxConcurrent int64

	// Actor identifies the pipeline on the events it emits.
	// Defaults to the "pipeline" service actor.
	Actor identity.ActorID

	// AggregateType selects the promotion target partition.
	// Defaults to "document".
	AggregateType string

	// DeleteSourceOnPromote removes the staging copy when promotion
	// succeeds instead of leaving it for the retention sweep.
	DeleteSourceOnPromote bool
}

// Pipeline drives processing jobs to a terminal state.
type Pipeline struct {
	store         *objectstore.Store
	clock         clock.Clock
	publisher     *event.Publisher
	logger        *slog.Logger
	slots         *semaphore.Weighted
	actor         identity.ActorID
	aggregateType string
	deleteSource  bool

	mu       sync.Mutex
	workers  map[string]StageFunc
	inFlight map[cid.CID]bool
}

// New returns a Pipeline over the given store.
func New(store *objectstore.Store, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Actor.IsZero() {
		opts.Actor = identity.ServiceActor("pipeline")
	}
	if opts.AggregateType == "" {
		opts.AggregateType = "document"
	}
	return &Pipeline{
		store:         store,
		clock:         opts.Clock,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		slots:         semaphore.NewWeighted(opts.MaxConcurrent),
		actor:         opts.Actor,
		aggregateType: opts.AggregateType,
		deleteSource:  opts.DeleteSourceOnPromote,
		workers:       make(map[string]StageFunc),
		inFlight:      make(map[cid.CID]bool),
	}
}

// RegisterStage installs the worker for a stage name, replacing any
// previous registration. The content_promotion stage is built in and
// needs no worker.
func (p *Pipeline) RegisterStage(name string, fn StageFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[name] = fn
}

// Run executes one job to a terminal state and returns its final
// snapshot. cause threads the identity of the command that requested
// processing; every event the run emits is caused by it. Run blocks
// for the duration of the job; callers wanting asynchrony run it in
// a goroutine.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, cause identity.Identity) (*objectstore.Job, error) {
	job, err := p.store.GetProcessingStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !p.slots.TryAcquire(1) {
		return nil, ErrCapacityExceeded
	}
	defer p.slots.Release(1)

	p.mu.Lock()
	if p.inFlight[job.CID] {
		p.mu.Unlock()
		return nil, &ContentBusyError{CID: job.CID}
	}
	p.inFlight[job.CID] = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, job.CID)
		p.mu.Unlock()
	}()

	job, err = p.store.BeginJob(jobID)
	if err != nil {
		return nil, err
	}

	data, err := p.store.Get(ctx, job.CID, p.store.StagingPartition())
	if err != nil {
		return p.fail(ctx, job, cause, fmt.Sprintf("reading staged content: %v", err))
	}

	p.emit(ctx, event.ProcessingStarted{
		CID:       job.CID,
		JobID:     job.ID,
		Stages:    job.StageNames(),
		StartedAt: p.clock.Now().UTC(),
	}, cause)
	p.logger.Info("processing started",
		"job_id", job.ID,
		"cid", job.CID.ShortPrefix(),
		"stages", strings.Join(job.StageNames(), ","))

	for i, stage := range job.Stages {
		if ctx.Err() != nil {
			return p.fail(ctx, job, cause, "processing cancelled")
		}

		result, execErr := p.runStage(ctx, stage, job.CID, data, job.Results)
		if execErr != nil {
			// The stage could not decide within its retry budget.
			if stage.Required {
				return p.fail(ctx, job, cause, fmt.Sprintf("stage %s: %v", stage.Name, execErr))
			}
			result = event.StageResult{
				Stage:       stage.Name,
				Success:     false,
				Error:       execErr.Error(),
				StartedAt:   p.clock.Now().UTC(),
				CompletedAt: p.clock.Now().UTC(),
			}
		}

		job, err = p.store.RecordStageResult(job.ID, result)
		if err != nil {
			return nil, err
		}

		nextStage := ""
		if i+1 < len(job.Stages) {
			nextStage = job.Stages[i+1].Name
		}
		p.emit(ctx, event.StageCompleted{
			CID:         job.CID,
			JobID:       job.ID,
			Result:      result,
			NextStage:   nextStage,
			JobComplete: nextStage == "",
			CompletedAt: p.clock.Now().UTC(),
		}, cause)

		if !result.Success && stage.Required {
			return p.quarantine(ctx, job, cause, result)
		}
	}

	job, err = p.store.FinishJob(job.ID, objectstore.JobSucceeded, "")
	if err != nil {
		return nil, err
	}
	p.emit(ctx, event.ProcessingCompleted{
		CID:         job.CID,
		JobID:       job.ID,
		Results:     job.Results,
		Success:     true,
		CompletedAt: p.clock.Now().UTC(),
	}, cause)
	p.logger.Info("processing succeeded", "job_id", job.ID, "cid", job.CID.ShortPrefix())
	return job, nil
}

// runStage executes one stage with its timeout, retrying execution
// errors within the stage's budget. The returned error means the
// budget is exhausted.
func (p *Pipeline) runStage(ctx context.Context, stage objectstore.StageSpec, c cid.CID, data []byte, prior []event.StageResult) (event.StageResult, error) {
	if stage.Name == objectstore.StageContentPromotion {
		if _, ok := p.worker(stage.Name); !ok {
			return p.promote(ctx, c, prior), nil
		}
	}
	fn, ok := p.worker(stage.Name)
	if !ok {
		return event.StageResult{}, fmt.Errorf("no worker registered for stage %s", stage.Name)
	}

	var lastErr error
	for attempt := 0; attempt <= stage.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * retryBackoff
			select {
			case <-p.clock.After(backoff):
			case <-ctx.Done():
				return event.StageResult{}, ctx.Err()
			}
		}

		stageCtx, cancel := context.WithTimeout(ctx, stage.Timeout)
		started := p.clock.Now().UTC()
		result, err := fn(stageCtx, c, data, prior)
		cancel()
		if err == nil {
			if result.Stage == "" {
				result.Stage = stage.Name
			}
			if result.StartedAt.IsZero() {
				result.StartedAt = started
			}
			if result.CompletedAt.IsZero() {
				result.CompletedAt = p.clock.Now().UTC()
			}
			return result, nil
		}
		lastErr = err
		p.logger.Warn("stage attempt failed",
			"stage", stage.Name,
			"cid", c.ShortPrefix(),
			"attempt", attempt+1,
			"error", err)
	}
	return event.StageResult{}, fmt.Errorf("exhausted %d attempts: %w", stage.MaxRetries+1, lastErr)
}

// promote is the built-in content_promotion stage.
func (p *Pipeline) promote(ctx context.Context, c cid.CID, prior []event.StageResult) event.StageResult {
	started := p.clock.Now().UTC()
	staging := p.store.StagingPartition()
	target, _ := staging.Next(p.aggregateType)

	err := p.store.Promote(ctx, c, staging, target, p.actor, objectstore.PromoteOptions{
		DeleteSource: p.deleteSource,
		Reason:       "processing complete",
		Results:      prior,
	})
	result := event.StageResult{
		Stage:       objectstore.StageContentPromotion,
		Success:     err == nil,
		StartedAt:   started,
		CompletedAt: p.clock.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// quarantine handles a definitive required-stage failure: the job
// ends Quarantined and the content is isolated with a hold deadline.
func (p *Pipeline) quarantine(ctx context.Context, job *objectstore.Job, cause identity.Identity, failed event.StageResult) (*objectstore.Job, error) {
	reason := failed.Error
	var threats []string
	if failed.VirusScan != nil && len(failed.VirusScan.Threats) > 0 {
		threats = failed.VirusScan.Threats
		reason = "threats detected"
	}
	if reason == "" {
		reason = fmt.Sprintf("required stage %s failed", failed.Stage)
	}

	job, err := p.store.FinishJob(job.ID, objectstore.JobQuarantined, reason)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, event.ProcessingCompleted{
		CID:           job.CID,
		JobID:         job.ID,
		Results:       job.Results,
		Success:       false,
		FailureReason: reason,
		CompletedAt:   p.clock.Now().UTC(),
	}, cause)

	if _, err := p.store.Quarantine(ctx, job.CID, job.ID, reason, threats, p.actor, cause); err != nil {
		p.logger.Error("quarantine after failed stage did not stick",
			"job_id", job.ID, "cid", job.CID.ShortPrefix(), "error", err)
	}
	return job, nil
}

// fail ends the job in the Failed state without quarantine.
func (p *Pipeline) fail(ctx context.Context, job *objectstore.Job, cause identity.Identity, reason string) (*objectstore.Job, error) {
	job, err := p.store.FinishJob(job.ID, objectstore.JobFailed, reason)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, event.ProcessingCompleted{
		CID:           job.CID,
		JobID:         job.ID,
		Results:       job.Results,
		Success:       false,
		FailureReason: reason,
		CompletedAt:   p.clock.Now().UTC(),
	}, cause)
	p.logger.Warn("processing failed", "job_id", job.ID, "cid", job.CID.ShortPrefix(), "reason", reason)
	return job, nil
}

func (p *Pipeline) worker(name string) (StageFunc, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn, ok := p.workers[name]
	return fn, ok
}

func (p *Pipeline) emit(ctx context.Context, payload event.Payload, cause identity.Identity) {
	if p.publisher == nil {
		return
	}
	now := p.clock.Now().UTC()
	var env identity.Envelope[event.Payload]
	if cause.MessageID.IsZero() {
		env = identity.Root[event.Payload](payload, p.actor, now)
	} else {
		var err error
		env, err = identity.CausedBy[event.Payload](payload, cause, p.actor, now)
		if err != nil {
			p.logger.Warn("dropping event with broken causation",
				"kind", payload.EventKind(), "error", err)
			return
		}
	}
	if err := p.publisher.Publish(ctx, env); err != nil {
		p.logger.Warn("event publish failed", "kind", payload.EventKind(), "error", err)
	}
}
