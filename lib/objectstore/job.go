// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/event"
)

// JobState is the lifecycle state of a processing job.
type JobState string

const (
	JobCreated     JobState = "created"
	JobRunning     JobState = "running"
	JobSucceeded   JobState = "succeeded"
	JobFailed      JobState = "failed"
	JobQuarantined JobState = "quarantined"
)

// Terminal reports whether a job in this state will never change
// again.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobQuarantined
}

// Stage names used by the standard pipeline.
const (
	StageVirusScan        = "virus_scan"
	StageFormatValidation = "format_validation"
	StageContentPromotion = "content_promotion"
)

// StageSpec describes one planned stage of a processing job.
type StageSpec struct {
	Name string `json:"name"`

	// Required stages abort the job and quarantine the content when
	// they fail. Optional stages record their failure and let the
	// job proceed.
	Required bool `json:"required"`

	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
}

// estimatedJobDuration is the completion estimate reported to callers
// at ingest and job creation. It is advisory only.
const estimatedJobDuration = 10 * time.Minute

// Job tracks one pipeline run over a single piece of staged content.
type Job struct {
	ID     uuid.UUID   `json:"id"`
	CID    cid.CID     `json:"cid"`
	Stages []StageSpec `json:"stages"`
	State  JobState    `json:"state"`

	// Results accumulate in stage order as the pipeline runs.
	Results []event.StageResult `json:"results,omitempty"`

	FailureReason       string    `json:"failure_reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

// buildStages plans the stage list for a job. Scanning and
// validation are toggled by the caller; promotion is always present,
// so the list is never empty.
func buildStages(enableVirusScan, enableValidation bool) []StageSpec {
	var stages []StageSpec
	if enableVirusScan {
		stages = append(stages, StageSpec{
			Name:       StageVirusScan,
			Required:   true,
			Timeout:    300 * time.Second,
			MaxRetries: 2,
		})
	}
	if enableValidation {
		stages = append(stages, StageSpec{
			Name:       StageFormatValidation,
			Required:   false,
			Timeout:    60 * time.Second,
			MaxRetries: 1,
		})
	}
	stages = append(stages, StageSpec{
		Name:       StageContentPromotion,
		Required:   true,
		Timeout:    30 * time.Second,
		MaxRetries: 0,
	})
	return stages
}

// StageNames returns the planned stage names in execution order.
func (j *Job) StageNames() []string {
	names := make([]string, len(j.Stages))
	for i, stage := range j.Stages {
		names[i] = stage.Name
	}
	return names
}

// clone returns a copy safe to hand outside the store's lock.
func (j *Job) clone() *Job {
	copied := *j
	copied.Stages = append([]StageSpec(nil), j.Stages...)
	copied.Results = append([]event.StageResult(nil), j.Results...)
	return &copied
}
