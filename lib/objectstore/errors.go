// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
)

// ErrCapacityExceeded is returned when an ingest would push the store
// past its configured capacity.
var ErrCapacityExceeded = errors.New("storage capacity exceeded")

// ContentNotFoundError reports that a CID is absent from the named
// partition. The CID may still exist in other partitions; reads are
// strictly partition scoped.
type ContentNotFoundError struct {
	CID       cid.CID
	Partition Partition
}

func (e *ContentNotFoundError) Error() string {
	return fmt.Sprintf("content %s not found in %s", e.CID.ShortPrefix(), e.Partition)
}

// IsContentNotFound reports whether err is a ContentNotFoundError.
func IsContentNotFound(err error) bool {
	var notFound *ContentNotFoundError
	return errors.As(err, &notFound)
}

// PartitionAccessError reports an operation against a partition that
// does not accept it.
type PartitionAccessError struct {
	Partition Partition
	Op        string
}

func (e *PartitionAccessError) Error() string {
	return fmt.Sprintf("partition %s denies %s", e.Partition, e.Op)
}

// PromotionError reports a refused or failed promotion.
type PromotionError struct {
	CID    cid.CID
	Reason string
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promoting %s: %s", e.CID.ShortPrefix(), e.Reason)
}

// InvalidFormatError reports content the store refuses to accept.
type InvalidFormatError struct {
	Format string
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid content format %q: %s", e.Format, e.Reason)
}

// JobNotFoundError reports an unknown processing job ID.
type JobNotFoundError struct {
	JobID uuid.UUID
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("processing job %s not found", e.JobID)
}
