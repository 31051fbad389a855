// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/clock"
	"github.com/vellum-foundation/vellum/lib/codec"
	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/messaging"
)

// Bucket key layout. Object bytes and their descriptor live under
// separate prefixes so a listing of either is cheap.
const (
	contentKeyPrefix    = "content/"
	metaKeyPrefix       = "meta/"
	quarantineKeyPrefix = "quarantine/"
)

// quarantineHold is how long quarantined content is retained before
// the cleanup sweep may discard it.
const quarantineHold = 30 * 24 * time.Hour

// Options configures a Store.
type Options struct {
	// Clock defaults to the real clock. Tests inject a fake.
	Clock clock.Clock

	// Publisher receives the store's domain events. Nil disables
	// event emission.
	Publisher *event.Publisher

	// Domain names the document domain the store serves and selects
	// its staging partition. Defaults to "document".
	Domain string

	// CapacityBytes caps the total stored frame bytes across all
	// partitions. Zero means unlimited.
	CapacityBytes uint64

	// StagingRetentionHours overrides the staging partition's
	// retention window. Zero keeps the 48 hour default.
	StagingRetentionHours int

	Logger *slog.Logger
}

// Store is the facade over partitioned content storage. All writes,
// promotions, quarantine markers, and processing job records go
// through it.
type Store struct {
	buckets   messaging.Buckets
	clock     clock.Clock
	publisher *event.Publisher
	capacity  uint64
	logger    *slog.Logger
	staging   Partition

	mu        sync.Mutex
	jobs      map[uuid.UUID]*Job
	usedBytes uint64
}

// New returns a Store over the given bucket provider.
func New(buckets messaging.Buckets, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Domain == "" {
		opts.Domain = "document"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	staging := StagingPartition(opts.Domain)
	if opts.StagingRetentionHours > 0 {
		staging.RetentionHours = uint32(opts.StagingRetentionHours)
	}
	return &Store{
		buckets:   buckets,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		capacity:  opts.CapacityBytes,
		logger:    opts.Logger,
		staging:   staging,
		jobs:      make(map[uuid.UUID]*Job),
	}
}

// StagingPartition returns the staging partition the store serves.
func (s *Store) StagingPartition() Partition { return s.staging }

// metaRecord is the stored descriptor accompanying every object.
type metaRecord struct {
	Metadata   event.ContentMetadata `json:"metadata"`
	IngestedAt time.Time             `json:"ingested_at"`
	Actor      identity.ActorID      `json:"actor"`
	FrameBytes uint64                `json:"frame_bytes"`
}

// quarantineRecord marks content isolated by a failed required stage.
// Its presence blocks promotion until a release permits it.
type quarantineRecord struct {
	Reason           string    `json:"reason"`
	Threats          []string  `json:"threats,omitempty"`
	JobID            uuid.UUID `json:"job_id,omitempty"`
	QuarantinedAt    time.Time `json:"quarantined_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Released         bool      `json:"released"`
	PromotionAllowed bool      `json:"promotion_allowed"`
}

// IngestionResult is what Ingest reports back to the caller.
type IngestionResult struct {
	CID                 cid.CID
	Partition           Partition
	Metadata            event.ContentMetadata
	IngestedAt          time.Time
	ProcessingRequired  bool
	EstimatedCompletion time.Time
}

// Ingest writes content into a partition keyed by its CID and
// records its metadata. Re-ingesting identical bytes into the same
// partition is a no-op that returns the original result. Archive
// partitions reject direct ingest; content reaches them only through
// promotion.
func (s *Store) Ingest(ctx context.Context, data []byte, mimeHint string, target Partition, actor identity.ActorID) (IngestionResult, error) {
	if mimeHint != "" && !strings.Contains(mimeHint, "/") {
		return IngestionResult{}, &InvalidFormatError{Format: mimeHint, Reason: "MIME hint is not type/subtype"}
	}
	if target.Kind == Archive {
		return IngestionResult{}, &PartitionAccessError{Partition: target, Op: "ingest"}
	}

	c := cid.FromContent(data)
	bucket, err := s.buckets.Bucket(ctx, target.BucketName())
	if err != nil {
		return IngestionResult{}, fmt.Errorf("opening bucket %s: %w", target.BucketName(), err)
	}

	processingRequired := target.Kind == Staging
	now := s.clock.Now().UTC()

	// Idempotent re-ingest: the descriptor is the witness that the
	// object is already stored.
	if existing, err := bucket.Get(ctx, metaKeyPrefix+c.String()); err == nil {
		var rec metaRecord
		if err := codec.Unmarshal(existing, &rec); err != nil {
			return IngestionResult{}, fmt.Errorf("decoding stored metadata for %s: %w", c.ShortPrefix(), err)
		}
		return IngestionResult{
			CID:                c,
			Partition:          target,
			Metadata:           rec.Metadata,
			IngestedAt:         rec.IngestedAt,
			ProcessingRequired: processingRequired,
		}, nil
	} else if !errors.Is(err, messaging.ErrKeyNotFound) {
		return IngestionResult{}, fmt.Errorf("checking for existing %s: %w", c.ShortPrefix(), err)
	}

	frame := encodeFrame(data, target)
	if err := s.reserve(uint64(len(frame))); err != nil {
		return IngestionResult{}, err
	}

	meta := metaRecord{
		Metadata:   DetectMetadata(data, mimeHint),
		IngestedAt: now,
		Actor:      actor,
		FrameBytes: uint64(len(frame)),
	}
	metaBytes, err := codec.Marshal(meta)
	if err != nil {
		s.release(uint64(len(frame)))
		return IngestionResult{}, fmt.Errorf("encoding metadata for %s: %w", c.ShortPrefix(), err)
	}
	if err := bucket.Put(ctx, contentKeyPrefix+c.String(), frame); err != nil {
		s.release(uint64(len(frame)))
		return IngestionResult{}, fmt.Errorf("storing %s: %w", c.ShortPrefix(), err)
	}
	if err := bucket.Put(ctx, metaKeyPrefix+c.String(), metaBytes); err != nil {
		s.release(uint64(len(frame)))
		return IngestionResult{}, fmt.Errorf("storing metadata for %s: %w", c.ShortPrefix(), err)
	}

	result := IngestionResult{
		CID:                c,
		Partition:          target,
		Metadata:           meta.Metadata,
		IngestedAt:         now,
		ProcessingRequired: processingRequired,
	}
	if processingRequired {
		result.EstimatedCompletion = now.Add(estimatedJobDuration)
	}

	s.emit(ctx, event.ContentIngested{
		CID:                 c,
		Partition:           target.Ref(),
		Metadata:            meta.Metadata,
		EstimatedCompletion: result.EstimatedCompletion,
		IngestedAt:          now,
	}, actor, identity.Identity{})

	s.logger.Info("content ingested",
		"cid", c.ShortPrefix(),
		"bucket", target.BucketName(),
		"size", meta.Metadata.SizeBytes,
		"actor", actor.String())
	return result, nil
}

// Get returns the object bytes for a CID from one partition. A CID
// stored elsewhere is still not found here.
func (s *Store) Get(ctx context.Context, c cid.CID, partition Partition) ([]byte, error) {
	bucket, err := s.buckets.Bucket(ctx, partition.BucketName())
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", partition.BucketName(), err)
	}
	frame, err := bucket.Get(ctx, contentKeyPrefix+c.String())
	if errors.Is(err, messaging.ErrKeyNotFound) {
		return nil, &ContentNotFoundError{CID: c, Partition: partition}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.ShortPrefix(), err)
	}
	data, err := decodeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.ShortPrefix(), err)
	}
	return data, nil
}

// Exists reports whether a CID is present in a partition.
func (s *Store) Exists(ctx context.Context, c cid.CID, partition Partition) (bool, error) {
	bucket, err := s.buckets.Bucket(ctx, partition.BucketName())
	if err != nil {
		return false, fmt.Errorf("opening bucket %s: %w", partition.BucketName(), err)
	}
	if _, err := bucket.Get(ctx, contentKeyPrefix+c.String()); err != nil {
		if errors.Is(err, messaging.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", c.ShortPrefix(), err)
	}
	return true, nil
}

// Metadata returns the descriptor recorded for a CID in a partition.
func (s *Store) Metadata(ctx context.Context, c cid.CID, partition Partition) (event.ContentMetadata, error) {
	bucket, err := s.buckets.Bucket(ctx, partition.BucketName())
	if err != nil {
		return event.ContentMetadata{}, fmt.Errorf("opening bucket %s: %w", partition.BucketName(), err)
	}
	raw, err := bucket.Get(ctx, metaKeyPrefix+c.String())
	if errors.Is(err, messaging.ErrKeyNotFound) {
		return event.ContentMetadata{}, &ContentNotFoundError{CID: c, Partition: partition}
	}
	if err != nil {
		return event.ContentMetadata{}, fmt.Errorf("reading metadata for %s: %w", c.ShortPrefix(), err)
	}
	var rec metaRecord
	if err := codec.Unmarshal(raw, &rec); err != nil {
		return event.ContentMetadata{}, fmt.Errorf("decoding metadata for %s: %w", c.ShortPrefix(), err)
	}
	return rec.Metadata, nil
}

// PromoteOptions adjusts a promotion.
type PromoteOptions struct {
	// DeleteSource removes the staging copy once the destination
	// write succeeds. When false the staging copy waits for the
	// retention sweep.
	DeleteSource bool

	// Reason is carried on the ContentPromoted event.
	Reason string

	// Results attaches pipeline stage outcomes to the event.
	Results []event.StageResult

	// DocumentID ties the promotion to a document when one exists.
	DocumentID identity.DocumentID

	// Cause threads the identity of the command that led here.
	// Zero emits a root event.
	Cause identity.Identity
}

// Promote copies a CID's bytes from one partition into another and
// emits ContentPromoted. Only staging permits promotion, and
// quarantined content is refused until released with promotion
// allowed.
func (s *Store) Promote(ctx context.Context, c cid.CID, from, to Partition, actor identity.ActorID, opts PromoteOptions) error {
	if !from.AllowsPromotion() {
		return &PromotionError{CID: c, Reason: fmt.Sprintf("%s does not allow promotion", from)}
	}
	// A marker blocks promotion whether or not the content has been
	// released for access: only a permissive release removes the
	// marker, and only marker-free content may move on.
	if _, ok, err := s.quarantineMarker(ctx, c, from); err != nil {
		return err
	} else if ok {
		return &PromotionError{CID: c, Reason: "content is quarantined"}
	}

	data, err := s.Get(ctx, c, from)
	if err != nil {
		if IsContentNotFound(err) {
			return &PromotionError{CID: c, Reason: fmt.Sprintf("content not found in %s", from)}
		}
		return err
	}

	source, err := s.buckets.Bucket(ctx, from.BucketName())
	if err != nil {
		return fmt.Errorf("opening bucket %s: %w", from.BucketName(), err)
	}
	dest, err := s.buckets.Bucket(ctx, to.BucketName())
	if err != nil {
		return fmt.Errorf("opening bucket %s: %w", to.BucketName(), err)
	}

	frame := encodeFrame(data, to)
	if err := s.reserve(uint64(len(frame))); err != nil {
		return err
	}
	if err := dest.Put(ctx, contentKeyPrefix+c.String(), frame); err != nil {
		s.release(uint64(len(frame)))
		return &PromotionError{CID: c, Reason: fmt.Sprintf("writing to %s: %v", to, err)}
	}
	if raw, err := source.Get(ctx, metaKeyPrefix+c.String()); err == nil {
		if err := dest.Put(ctx, metaKeyPrefix+c.String(), raw); err != nil {
			return &PromotionError{CID: c, Reason: fmt.Sprintf("copying metadata to %s: %v", to, err)}
		}
	}

	if opts.DeleteSource {
		if err := s.deleteObject(ctx, source, c); err != nil {
			s.logger.Warn("source cleanup after promotion failed",
				"cid", c.ShortPrefix(), "bucket", from.BucketName(), "error", err)
			opts.DeleteSource = false
		}
	}

	reason := opts.Reason
	if reason == "" {
		reason = "promotion"
	}
	now := s.clock.Now().UTC()
	s.emit(ctx, event.ContentPromoted{
		DocumentID:    opts.DocumentID,
		CID:           c,
		From:          from.Ref(),
		To:            to.Ref(),
		Reason:        reason,
		Results:       opts.Results,
		SourceCleaned: opts.DeleteSource,
		PromotedAt:    now,
	}, actor, opts.Cause)

	s.logger.Info("content promoted",
		"cid", c.ShortPrefix(),
		"from", from.BucketName(),
		"to", to.BucketName(),
		"source_cleaned", opts.DeleteSource)
	return nil
}

// StartProcessing plans a processing job for staged content and
// registers it. The job is returned in the Created state; the
// pipeline drives it from there.
func (s *Store) StartProcessing(ctx context.Context, c cid.CID, enableVirusScan, enableValidation bool) (*Job, error) {
	ok, err := s.Exists(ctx, c, s.staging)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ContentNotFoundError{CID: c, Partition: s.staging}
	}

	now := s.clock.Now().UTC()
	job := &Job{
		ID:                  uuid.New(),
		CID:                 c,
		Stages:              buildStages(enableVirusScan, enableValidation),
		State:               JobCreated,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: now.Add(estimatedJobDuration),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Info("processing job created",
		"job_id", job.ID,
		"cid", c.ShortPrefix(),
		"stages", strings.Join(job.StageNames(), ","))
	return job.clone(), nil
}

// GetProcessingStatus returns a snapshot of a job.
func (s *Store) GetProcessingStatus(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &JobNotFoundError{JobID: jobID}
	}
	return job.clone(), nil
}

// BeginJob moves a job from Created to Running. It rejects jobs that
// already ran.
func (s *Store) BeginJob(jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &JobNotFoundError{JobID: jobID}
	}
	if job.State != JobCreated {
		return nil, fmt.Errorf("job %s is %s, not created", jobID, job.State)
	}
	job.State = JobRunning
	job.UpdatedAt = s.clock.Now().UTC()
	return job.clone(), nil
}

// RecordStageResult appends one stage outcome to a running job.
func (s *Store) RecordStageResult(jobID uuid.UUID, result event.StageResult) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &JobNotFoundError{JobID: jobID}
	}
	if job.State.Terminal() {
		return nil, fmt.Errorf("job %s is already %s", jobID, job.State)
	}
	job.Results = append(job.Results, result)
	job.UpdatedAt = s.clock.Now().UTC()
	return job.clone(), nil
}

// FinishJob moves a job into a terminal state.
func (s *Store) FinishJob(jobID uuid.UUID, state JobState, failureReason string) (*Job, error) {
	if !state.Terminal() {
		return nil, fmt.Errorf("state %s is not terminal", state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &JobNotFoundError{JobID: jobID}
	}
	if job.State.Terminal() {
		return nil, fmt.Errorf("job %s is already %s", jobID, job.State)
	}
	job.State = state
	job.FailureReason = failureReason
	job.UpdatedAt = s.clock.Now().UTC()
	return job.clone(), nil
}

// Quarantine isolates staging content after a failed required stage.
// The content stays in place; a marker blocks promotion and sets a
// hold deadline. Returns when the hold expires.
func (s *Store) Quarantine(ctx context.Context, c cid.CID, jobID uuid.UUID, reason string, threats []string, actor identity.ActorID, cause identity.Identity) (time.Time, error) {
	bucket, err := s.buckets.Bucket(ctx, s.staging.BucketName())
	if err != nil {
		return time.Time{}, fmt.Errorf("opening bucket %s: %w", s.staging.BucketName(), err)
	}
	now := s.clock.Now().UTC()
	rec := quarantineRecord{
		Reason:        reason,
		Threats:       threats,
		JobID:         jobID,
		QuarantinedAt: now,
		ExpiresAt:     now.Add(quarantineHold),
	}
	raw, err := codec.Marshal(rec)
	if err != nil {
		return time.Time{}, fmt.Errorf("encoding quarantine record: %w", err)
	}
	if err := bucket.Put(ctx, quarantineKeyPrefix+c.String(), raw); err != nil {
		return time.Time{}, fmt.Errorf("storing quarantine record for %s: %w", c.ShortPrefix(), err)
	}

	s.emit(ctx, event.ContentQuarantined{
		CID:           c,
		Partition:     s.staging.Ref(),
		Reason:        reason,
		Threats:       threats,
		JobID:         jobID,
		ExpiresAt:     rec.ExpiresAt,
		QuarantinedAt: now,
	}, actor, cause)

	s.logger.Warn("content quarantined",
		"cid", c.ShortPrefix(),
		"reason", reason,
		"threats", strings.Join(threats, ","),
		"expires_at", rec.ExpiresAt)
	return rec.ExpiresAt, nil
}

// Release lifts a quarantine after review. With promotionAllowed the
// marker is removed entirely; otherwise the content stays released
// but barred from promotion.
func (s *Store) Release(ctx context.Context, c cid.CID, reason string, promotionAllowed bool, actor identity.ActorID, cause identity.Identity) error {
	bucket, err := s.buckets.Bucket(ctx, s.staging.BucketName())
	if err != nil {
		return fmt.Errorf("opening bucket %s: %w", s.staging.BucketName(), err)
	}
	key := quarantineKeyPrefix + c.String()
	raw, err := bucket.Get(ctx, key)
	if errors.Is(err, messaging.ErrKeyNotFound) {
		return fmt.Errorf("content %s is not quarantined", c.ShortPrefix())
	}
	if err != nil {
		return fmt.Errorf("reading quarantine record for %s: %w", c.ShortPrefix(), err)
	}

	if promotionAllowed {
		if err := bucket.Delete(ctx, key); err != nil {
			return fmt.Errorf("removing quarantine record for %s: %w", c.ShortPrefix(), err)
		}
	} else {
		var rec quarantineRecord
		if err := codec.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decoding quarantine record for %s: %w", c.ShortPrefix(), err)
		}
		rec.Released = true
		rec.PromotionAllowed = false
		updated, err := codec.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding quarantine record: %w", err)
		}
		if err := bucket.Put(ctx, key, updated); err != nil {
			return fmt.Errorf("updating quarantine record for %s: %w", c.ShortPrefix(), err)
		}
	}

	s.emit(ctx, event.ContentReleased{
		CID:              c,
		Partition:        s.staging.Ref(),
		Reason:           reason,
		PromotionAllowed: promotionAllowed,
		ReleasedAt:       s.clock.Now().UTC(),
	}, actor, cause)
	return nil
}

// IsQuarantined reports whether a CID carries an active quarantine
// marker in staging.
func (s *Store) IsQuarantined(ctx context.Context, c cid.CID) (bool, error) {
	_, ok, err := s.quarantineMarker(ctx, c, s.staging)
	return ok, err
}

// ListPartitionContent returns the CIDs stored in a partition,
// bounded by limit when positive. Ordering is stable within a call.
func (s *Store) ListPartitionContent(ctx context.Context, partition Partition, limit int) ([]cid.CID, error) {
	bucket, err := s.buckets.Bucket(ctx, partition.BucketName())
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", partition.BucketName(), err)
	}
	keys, err := bucket.List(ctx, contentKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", partition.BucketName(), err)
	}
	var cids []cid.CID
	for _, key := range keys {
		if limit > 0 && len(cids) >= limit {
			break
		}
		c, err := cid.Parse(strings.TrimPrefix(key, contentKeyPrefix))
		if err != nil {
			continue
		}
		cids = append(cids, c)
	}
	return cids, nil
}

// CleanupExpiredStaging removes staging objects past their retention
// window and returns how many were deleted. Quarantined content is
// held until its quarantine expires, whatever its age. Aggregate and
// archive partitions are never touched.
func (s *Store) CleanupExpiredStaging(ctx context.Context) (int, error) {
	bucket, err := s.buckets.Bucket(ctx, s.staging.BucketName())
	if err != nil {
		return 0, fmt.Errorf("opening bucket %s: %w", s.staging.BucketName(), err)
	}
	keys, err := bucket.List(ctx, metaKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", s.staging.BucketName(), err)
	}

	now := s.clock.Now().UTC()
	retention := time.Duration(s.staging.RetentionHours) * time.Hour

	var (
		removed    []cid.CID
		bytesFreed uint64
	)
	for _, key := range keys {
		c, err := cid.Parse(strings.TrimPrefix(key, metaKeyPrefix))
		if err != nil {
			continue
		}
		raw, err := bucket.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec metaRecord
		if err := codec.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("skipping undecodable staging descriptor", "key", key, "error", err)
			continue
		}
		if now.Sub(rec.IngestedAt) <= retention {
			continue
		}
		if marker, ok, err := s.quarantineMarker(ctx, c, s.staging); err == nil && ok && now.Before(marker.ExpiresAt) {
			continue
		}
		if err := s.deleteObject(ctx, bucket, c); err != nil {
			s.logger.Warn("staging cleanup failed for object", "cid", c.ShortPrefix(), "error", err)
			continue
		}
		s.release(rec.FrameBytes)
		removed = append(removed, c)
		bytesFreed += rec.Metadata.SizeBytes
	}

	if len(removed) > 0 {
		s.emit(ctx, event.StagingCleaned{
			CIDs:       removed,
			Partition:  s.staging.Ref(),
			BytesFreed: bytesFreed,
			CleanedAt:  now,
		}, identity.SystemActor(), identity.Identity{})
		s.logger.Info("staging cleanup complete",
			"removed", len(removed),
			"bytes_freed", bytesFreed)
	}
	return len(removed), nil
}

func (s *Store) quarantineMarker(ctx context.Context, c cid.CID, partition Partition) (quarantineRecord, bool, error) {
	bucket, err := s.buckets.Bucket(ctx, partition.BucketName())
	if err != nil {
		return quarantineRecord{}, false, fmt.Errorf("opening bucket %s: %w", partition.BucketName(), err)
	}
	raw, err := bucket.Get(ctx, quarantineKeyPrefix+c.String())
	if errors.Is(err, messaging.ErrKeyNotFound) {
		return quarantineRecord{}, false, nil
	}
	if err != nil {
		return quarantineRecord{}, false, fmt.Errorf("reading quarantine record for %s: %w", c.ShortPrefix(), err)
	}
	var rec quarantineRecord
	if err := codec.Unmarshal(raw, &rec); err != nil {
		return quarantineRecord{}, false, fmt.Errorf("decoding quarantine record for %s: %w", c.ShortPrefix(), err)
	}
	return rec, true, nil
}

func (s *Store) deleteObject(ctx context.Context, bucket messaging.Bucket, c cid.CID) error {
	if err := bucket.Delete(ctx, contentKeyPrefix+c.String()); err != nil && !errors.Is(err, messaging.ErrKeyNotFound) {
		return err
	}
	for _, key := range []string{metaKeyPrefix + c.String(), quarantineKeyPrefix + c.String()} {
		if err := bucket.Delete(ctx, key); err != nil && !errors.Is(err, messaging.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) reserve(n uint64) error {
	if s.capacity == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usedBytes+n > s.capacity {
		return ErrCapacityExceeded
	}
	s.usedBytes += n
	return nil
}

func (s *Store) release(n uint64) {
	if s.capacity == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.usedBytes {
		s.usedBytes = 0
	} else {
		s.usedBytes -= n
	}
}

// emit publishes a domain event, as a root message when cause is
// zero or caused by it otherwise. Publish failures are logged, not
// returned; storage writes already took effect.
func (s *Store) emit(ctx context.Context, payload event.Payload, actor identity.ActorID, cause identity.Identity) {
	if s.publisher == nil {
		return
	}
	now := s.clock.Now().UTC()
	var env identity.Envelope[event.Payload]
	if cause.MessageID.IsZero() {
		env = identity.Root[event.Payload](payload, actor, now)
	} else {
		var err error
		env, err = identity.CausedBy[event.Payload](payload, cause, actor, now)
		if err != nil {
			s.logger.Warn("dropping event with broken causation",
				"kind", payload.EventKind(), "error", err)
			return
		}
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Warn("event publish failed",
			"kind", payload.EventKind(), "error", err)
	}
}
