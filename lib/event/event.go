// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/identity"
)

// Kind names one variant of the domain event catalog. The set is
// closed: consumers switch over it exhaustively and reject anything
// else at the boundary.
type Kind string

const (
	KindContentIngested      Kind = "content_ingested"
	KindProcessingStarted    Kind = "processing_started"
	KindStageCompleted       Kind = "stage_completed"
	KindProcessingCompleted  Kind = "processing_completed"
	KindContentPromoted      Kind = "content_promoted"
	KindContentQuarantined   Kind = "content_quarantined"
	KindContentReleased      Kind = "content_released"
	KindStagingCleaned       Kind = "staging_cleaned"
	KindDocumentCreated      Kind = "document_created"
	KindWorkflowStarted      Kind = "workflow_started"
	KindWorkflowTransitioned Kind = "workflow_transitioned"
	KindWorkflowCompleted    Kind = "workflow_completed"
	KindWorkflowCancelled    Kind = "workflow_cancelled"
)

// Kinds returns every catalog member in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindContentIngested,
		KindProcessingStarted,
		KindStageCompleted,
		KindProcessingCompleted,
		KindContentPromoted,
		KindContentQuarantined,
		KindContentReleased,
		KindStagingCleaned,
		KindDocumentCreated,
		KindWorkflowStarted,
		KindWorkflowTransitioned,
		KindWorkflowCompleted,
		KindWorkflowCancelled,
	}
}

// IsValid reports whether k is a member of the catalog.
func (k Kind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Payload is implemented by every domain event variant.
type Payload interface {
	EventKind() Kind
}

// ContentAddressed is implemented by payloads that concern a single
// piece of stored content. A zero CID means the association is absent.
type ContentAddressed interface {
	ContentCID() cid.CID
}

// DocumentScoped is implemented by payloads that concern a single
// document. A zero ID means the association is absent.
type DocumentScoped interface {
	Document() identity.DocumentID
}

// PartitionRef names a storage partition as it appears on the wire.
type PartitionRef struct {
	Kind   string `json:"kind"`
	Bucket string `json:"bucket"`
}

// ContentMetadata is what ingestion could determine about a blob
// without trusting the caller. Sniffing is deterministic: the same
// bytes always yield the same metadata.
type ContentMetadata struct {
	MimeType       string `json:"mime_type"`
	SizeBytes      uint64 `json:"size_bytes"`
	HashAlgorithm  string `json:"hash_algorithm"`
	DetectedFormat string `json:"detected_format,omitempty"`
	IsEncrypted    bool   `json:"is_encrypted"`
	LanguageHint   string `json:"language_hint,omitempty"`
}

// VirusScanResult is the detail of a completed virus scan stage.
type VirusScanResult struct {
	Clean              bool      `json:"clean"`
	Threats            []string  `json:"threats,omitempty"`
	ScannerVersion     string    `json:"scanner_version"`
	DefinitionsUpdated time.Time `json:"definitions_updated"`
}

// FormatValidationResult is the detail of a completed format
// validation stage.
type FormatValidationResult struct {
	Valid   bool     `json:"valid"`
	Format  string   `json:"format"`
	Version string   `json:"version,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// ContentAnalysisResult is the detail of a completed content analysis
// stage.
type ContentAnalysisResult struct {
	Language        string   `json:"language,omitempty"`
	TextExtractable bool     `json:"text_extractable"`
	PageCount       uint32   `json:"page_count,omitempty"`
	EmbeddedObjects []string `json:"embedded_objects,omitempty"`
}

// StageResult records the outcome of one pipeline stage. Exactly one
// detail pointer is set, matching the stage name.
type StageResult struct {
	Stage       string                  `json:"stage"`
	Success     bool                    `json:"success"`
	Error       string                  `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
	VirusScan   *VirusScanResult        `json:"virus_scan,omitempty"`
	Format      *FormatValidationResult `json:"format_validation,omitempty"`
	Analysis    *ContentAnalysisResult  `json:"content_analysis,omitempty"`
}

// ContentIngested announces that a blob entered the staging partition.
// Ingestion is idempotent, so the same CID may be announced more than
// once.
type ContentIngested struct {
	CID                 cid.CID         `json:"cid"`
	Partition           PartitionRef    `json:"partition"`
	Metadata            ContentMetadata `json:"metadata"`
	ProcessingJobID     uuid.UUID       `json:"processing_job_id,omitempty"`
	EstimatedCompletion time.Time       `json:"estimated_completion,omitempty"`
	IngestedAt          time.Time       `json:"ingested_at"`
}

func (ContentIngested) EventKind() Kind { return KindContentIngested }
func (e ContentIngested) ContentCID() cid.CID { return e.CID }

// ProcessingStarted announces that a pipeline job began executing.
type ProcessingStarted struct {
	CID       cid.CID   `json:"cid"`
	JobID     uuid.UUID `json:"job_id"`
	Stages    []string  `json:"stages"`
	StartedAt time.Time `json:"started_at"`
}

func (ProcessingStarted) EventKind() Kind { return KindProcessingStarted }
func (e ProcessingStarted) ContentCID() cid.CID { return e.CID }

// StageCompleted announces the outcome of one pipeline stage.
type StageCompleted struct {
	CID         cid.CID     `json:"cid"`
	JobID       uuid.UUID   `json:"job_id"`
	Result      StageResult `json:"result"`
	NextStage   string      `json:"next_stage,omitempty"`
	JobComplete bool        `json:"job_complete"`
	CompletedAt time.Time   `json:"completed_at"`
}

func (StageCompleted) EventKind() Kind { return KindStageCompleted }
func (e StageCompleted) ContentCID() cid.CID { return e.CID }

// ProcessingCompleted announces the terminal outcome of a pipeline
// job, successful or not.
type ProcessingCompleted struct {
	CID           cid.CID       `json:"cid"`
	JobID         uuid.UUID     `json:"job_id"`
	Results       []StageResult `json:"results"`
	Success       bool          `json:"success"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CompletedAt   time.Time     `json:"completed_at"`
}

func (ProcessingCompleted) EventKind() Kind { return KindProcessingCompleted }
func (e ProcessingCompleted) ContentCID() cid.CID { return e.CID }

// ContentPromoted announces that content moved from one partition to
// the next. SourceCleaned reports whether the source copy was removed
// as part of the move.
type ContentPromoted struct {
	DocumentID    identity.DocumentID `json:"document_id,omitempty"`
	CID           cid.CID             `json:"cid"`
	From          PartitionRef        `json:"from"`
	To            PartitionRef        `json:"to"`
	Reason        string              `json:"reason"`
	Results       []StageResult       `json:"results,omitempty"`
	SourceCleaned bool                `json:"source_cleaned"`
	PromotedAt    time.Time           `json:"promoted_at"`
}

func (ContentPromoted) EventKind() Kind { return KindContentPromoted }
func (e ContentPromoted) Document() identity.DocumentID { return e.DocumentID }
func (e ContentPromoted) ContentCID() cid.CID { return e.CID }

// ContentQuarantined announces that content was isolated after a
// required stage failed.
type ContentQuarantined struct {
	DocumentID    identity.DocumentID `json:"document_id,omitempty"`
	CID           cid.CID             `json:"cid"`
	Partition     PartitionRef        `json:"partition"`
	Reason        string              `json:"reason"`
	Threats       []string            `json:"threats,omitempty"`
	JobID         uuid.UUID           `json:"job_id,omitempty"`
	ExpiresAt     time.Time           `json:"expires_at"`
	QuarantinedAt time.Time           `json:"quarantined_at"`
}

func (ContentQuarantined) EventKind() Kind { return KindContentQuarantined }
func (e ContentQuarantined) ContentCID() cid.CID { return e.CID }

// ContentReleased announces that quarantined content was released
// after review.
type ContentReleased struct {
	CID              cid.CID      `json:"cid"`
	Partition        PartitionRef `json:"partition"`
	Reason           string       `json:"reason"`
	PromotionAllowed bool         `json:"promotion_allowed"`
	ReleasedAt       time.Time    `json:"released_at"`
}

func (ContentReleased) EventKind() Kind { return KindContentReleased }
func (e ContentReleased) ContentCID() cid.CID { return e.CID }

// StagingCleaned announces a retention sweep of the staging partition.
type StagingCleaned struct {
	CIDs       []cid.CID    `json:"cids"`
	Partition  PartitionRef `json:"partition"`
	BytesFreed uint64       `json:"bytes_freed"`
	CleanedAt  time.Time    `json:"cleaned_at"`
}

func (StagingCleaned) EventKind() Kind { return KindStagingCleaned }

// DocumentCreated announces that a document record now refers to
// stored content.
type DocumentCreated struct {
	DocumentID  identity.DocumentID `json:"document_id"`
	CID         cid.CID             `json:"cid"`
	Partition   PartitionRef        `json:"partition"`
	Filename    string              `json:"filename"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func (DocumentCreated) EventKind() Kind { return KindDocumentCreated }
func (e DocumentCreated) Document() identity.DocumentID { return e.DocumentID }
func (e DocumentCreated) ContentCID() cid.CID { return e.CID }

// WorkflowStarted announces a new workflow instance on a document.
type WorkflowStarted struct {
	InstanceID identity.WorkflowInstanceID `json:"instance_id"`
	Workflow   string                      `json:"workflow"`
	DocumentID identity.DocumentID         `json:"document_id"`
	Node       string                      `json:"node"`
	StartedAt  time.Time                   `json:"started_at"`
}

func (WorkflowStarted) EventKind() Kind { return KindWorkflowStarted }
func (e WorkflowStarted) Document() identity.DocumentID { return e.DocumentID }

// WorkflowTransitioned announces an accepted workflow transition.
type WorkflowTransitioned struct {
	InstanceID     identity.WorkflowInstanceID `json:"instance_id"`
	DocumentID     identity.DocumentID         `json:"document_id"`
	From           string                      `json:"from"`
	To             string                      `json:"to"`
	Reason         string                      `json:"reason,omitempty"`
	TransitionedAt time.Time                   `json:"transitioned_at"`
}

func (WorkflowTransitioned) EventKind() Kind { return KindWorkflowTransitioned }
func (e WorkflowTransitioned) Document() identity.DocumentID { return e.DocumentID }

// WorkflowCompleted announces that an instance reached a terminal
// node.
type WorkflowCompleted struct {
	InstanceID  identity.WorkflowInstanceID `json:"instance_id"`
	DocumentID  identity.DocumentID         `json:"document_id"`
	FinalNode   string                      `json:"final_node"`
	CompletedAt time.Time                   `json:"completed_at"`
}

func (WorkflowCompleted) EventKind() Kind { return KindWorkflowCompleted }
func (e WorkflowCompleted) Document() identity.DocumentID { return e.DocumentID }

// WorkflowCancelled announces that an instance was cancelled before
// reaching a terminal node.
type WorkflowCancelled struct {
	InstanceID  identity.WorkflowInstanceID `json:"instance_id"`
	DocumentID  identity.DocumentID         `json:"document_id"`
	Reason      string                      `json:"reason,omitempty"`
	CancelledAt time.Time                   `json:"cancelled_at"`
}

func (WorkflowCancelled) EventKind() Kind { return KindWorkflowCancelled }
func (e WorkflowCancelled) Document() identity.DocumentID { return e.DocumentID }
