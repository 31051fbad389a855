// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"fmt"

	"github.com/vellum-foundation/vellum/lib/event"
)

// PartitionKind names one of the three storage tiers.
type PartitionKind string

const (
	Staging   PartitionKind = "staging"
	Aggregate PartitionKind = "aggregate"
	Archive   PartitionKind = "archive"
)

// Partition identifies one storage bucket and the policy attached to
// it. The zero value is not a valid partition; use the constructors.
type Partition struct {
	Kind   PartitionKind
	Domain string

	// RetentionHours bounds how long staging content survives before
	// the cleanup sweep removes it. Staging only.
	RetentionHours uint32

	// AggregateType scopes an aggregate partition to one kind of
	// domain aggregate. Aggregate only.
	AggregateType string

	// ComplianceClass and RetentionYears select the archive policy.
	// Archive only.
	ComplianceClass string
	RetentionYears  uint32
}

// StagingPartition returns the staging partition for a domain with
// the standard two-day retention window.
func StagingPartition(domain string) Partition {
	return Partition{Kind: Staging, Domain: domain, RetentionHours: 48}
}

// AggregatePartition returns the aggregate partition for one
// aggregate type within a domain.
func AggregatePartition(domain, aggregateType string) Partition {
	return Partition{Kind: Aggregate, Domain: domain, AggregateType: aggregateType}
}

// ArchivePartition returns the archive partition for a compliance
// class within a domain.
func ArchivePartition(domain, complianceClass string, retentionYears uint32) Partition {
	return Partition{
		Kind:            Archive,
		Domain:          domain,
		ComplianceClass: complianceClass,
		RetentionYears:  retentionYears,
	}
}

// BucketName returns the bucket a partition stores its objects in.
// The mapping is total and deterministic, so every process derives
// the same bucket for the same partition.
func (p Partition) BucketName() string {
	switch p.Kind {
	case Staging:
		return p.Domain + "-staging"
	case Aggregate:
		return p.Domain + "-" + p.AggregateType + "-aggregate"
	case Archive:
		return p.Domain + "-" + p.ComplianceClass + "-archive"
	default:
		return p.Domain + "-unknown"
	}
}

// AllowsPromotion reports whether content may be promoted out of this
// partition. Only staging content moves forward; aggregate and
// archive copies are immutable destinations.
func (p Partition) AllowsPromotion() bool {
	return p.Kind == Staging
}

// Next returns the partition content is promoted into, or false when
// the partition is terminal. Staging promotes into the aggregate
// partition for aggregateType; aggregate content ages into the
// standard seven-year archive.
func (p Partition) Next(aggregateType string) (Partition, bool) {
	switch p.Kind {
	case Staging:
		return AggregatePartition(p.Domain, aggregateType), true
	case Aggregate:
		return ArchivePartition(p.Domain, "standard", 7), true
	default:
		return Partition{}, false
	}
}

// Ref returns the wire form of the partition for event payloads.
func (p Partition) Ref() event.PartitionRef {
	return event.PartitionRef{Kind: string(p.Kind), Bucket: p.BucketName()}
}

func (p Partition) String() string {
	return fmt.Sprintf("%s(%s)", p.Kind, p.BucketName())
}
