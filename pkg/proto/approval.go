package proto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus represents the lifecycle state of an approval request.
type ApprovalStatus string

// Approval statuses. A request starts PENDING and moves to exactly one
// terminal status, after which it never changes again.
const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusTimeout  ApprovalStatus = "TIMEOUT"
)

// String returns the string representation of the approval status.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the status can no longer change.
func (s ApprovalStatus) IsTerminal() bool {
	return s != ApprovalStatusPending
}

// ApprovalType identifies the class of gated operation.
type ApprovalType string

// Gated operation classes.
const (
	// ApprovalTypeExecution gates running generated code in the sandbox.
	ApprovalTypeExecution ApprovalType = "CODE_EXECUTION"
	// ApprovalTypePlan gates accepting a generated plan.
	ApprovalTypePlan ApprovalType = "PLAN_ACCEPTANCE"
	// ApprovalTypeSystem gates dangerous system operations
	// (package install, file delete/move, shell, network).
	ApprovalTypeSystem ApprovalType = "SYSTEM_OPERATION"
)

// String returns the string representation of the approval type.
func (t ApprovalType) String() string {
	return string(t)
}

// GenerateApprovalID creates a unique approval request identifier.
func GenerateApprovalID() string {
	return fmt.Sprintf("approval-%s", uuid.New().String()[:8])
}

// GenerateWorkflowID creates a unique workflow run identifier.
func GenerateWorkflowID() string {
	return fmt.Sprintf("workflow-%s-%d", uuid.New().String()[:8], time.Now().UTC().Unix())
}
