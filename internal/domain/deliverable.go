// Package domain contains core business types and interfaces.
//
// This file defines the Deliverable domain type: a versioned artifact
// produced against a task, optionally counted against the organization's
// monthly plan.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the client's decision on a deliverable. Transitions are
// driven externally; the quota engine only ever writes PENDING.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Deliverable is a versioned artifact submitted against a task.
//
// PlanInstanceID is set iff CountsAgainstPlan is true and quota consumption
// succeeded. VersionNum is server-computed: the next integer after the
// highest existing version for the task, 1 when none.
type Deliverable struct {
	ID                uuid.UUID
	TaskID            uuid.UUID
	VersionNum        int32
	StorageLocator    string
	SizeBytes         int64
	MimeType          string
	CountsAgainstPlan bool
	PlanInstanceID    *int64
	ApprovalStatus    ApprovalStatus
	Lifecycle         Lifecycle
	CreatedAt         time.Time
}

// RecordDeliverableParams contains parameters for recording a deliverable.
// The binary is already stored upstream; StorageLocator is its durable key.
type RecordDeliverableParams struct {
	TaskID            uuid.UUID
	StorageLocator    string
	SizeBytes         int64
	MimeType          string
	CountsAgainstPlan bool
}
