package approval

import (
	"context"
	"fmt"

	"codeagent/pkg/hooks"
	"codeagent/pkg/proto"
	"codeagent/pkg/utils"
)

// Metadata keys used by the gate hooks to pass decisions back to the
// caller through the hook context. This metadata side channel is the
// only way a gate influences control flow.
const (
	// MetaTool names the tool about to run, set by the caller before
	// triggering before_tool_call.
	MetaTool = "tool"
	// MetaPhase names the current phase, set by the workflow driver on
	// every agent event.
	MetaPhase = "phase"
	// MetaDescription describes the gated operation, set by the caller.
	MetaDescription = "description"

	// MetaExecutionApproved carries the execution gate's verdict (bool).
	MetaExecutionApproved = "execution_approved"
	// MetaPlanApproved carries the plan gate's verdict (bool).
	MetaPlanApproved = "plan_approved"
	// MetaSystemApproved carries the system gate's verdict (bool).
	MetaSystemApproved = "system_approved"
	// MetaRejectionReason carries the operator's rationale on denial.
	MetaRejectionReason = "rejection_reason"
	// MetaApprovalID carries the resolved request's ID.
	MetaApprovalID = "approval_id"
)

// ToolSandboxExecute is the tool name the executing phase uses when
// triggering tool-call hooks around a sandbox run.
const ToolSandboxExecute = "sandbox_execute"

// DangerousOperations is the fixed allow-list of system operations the
// system gate covers. Tools outside this list pass ungated.
//
//nolint:gochecknoglobals // fixed allow-list
var DangerousOperations = map[string]bool{
	"package_install": true,
	"file_delete":     true,
	"file_move":       true,
	"shell_execution": true,
	"network_request": true,
}

// gate runs the full request/wait cycle and writes the verdict into the
// hook context under approvedKey.
func gate(ctx context.Context, m *Manager, hc *hooks.Context, opType proto.ApprovalType, description, approvedKey string) {
	req := m.CreateRequest(opType, description, snapshotMetadata(hc), 0)

	resolved, err := m.WaitForApproval(ctx, req.ID)
	if err != nil {
		hc.Metadata[approvedKey] = false
		hc.Metadata[MetaRejectionReason] = fmt.Sprintf("approval wait failed: %v", err)
		return
	}

	approved := resolved.Status() == proto.ApprovalStatusApproved
	hc.Metadata[approvedKey] = approved
	hc.Metadata[MetaApprovalID] = resolved.ID
	if !approved {
		reason := resolved.Response()
		if reason == "" {
			reason = resolved.Status().String()
		}
		hc.Metadata[MetaRejectionReason] = reason
	}
}

// snapshotMetadata copies the hook metadata as the request's context
// snapshot, skipping the gate's own output keys.
func snapshotMetadata(hc *hooks.Context) map[string]any {
	snapshot := make(map[string]any, len(hc.Metadata))
	for k, v := range hc.Metadata {
		switch k {
		case MetaExecutionApproved, MetaPlanApproved, MetaSystemApproved, MetaRejectionReason, MetaApprovalID:
		default:
			snapshot[k] = v
		}
	}
	return snapshot
}

// NewExecutionGate returns a before_tool_call hook gating sandbox code
// execution. With autoApprove set the gate consents without operator
// interaction.
func NewExecutionGate(m *Manager, autoApprove bool) hooks.Handler {
	return func(ctx context.Context, hc *hooks.Context) (*hooks.Context, error) {
		tool, _ := utils.SafeAssert[string](hc.Metadata[MetaTool])
		if tool != ToolSandboxExecute {
			return hc, nil
		}
		if autoApprove {
			hc.Metadata[MetaExecutionApproved] = true
			return hc, nil
		}

		description := utils.AssertOr[string](hc.Metadata[MetaDescription], "execute generated code in sandbox")
		gate(ctx, m, hc, proto.ApprovalTypeExecution, description, MetaExecutionApproved)
		return hc, nil
	}
}

// NewPlanGate returns an after_agent hook gating plan acceptance at the
// end of the planning phase.
func NewPlanGate(m *Manager, autoApprove bool) hooks.Handler {
	return func(ctx context.Context, hc *hooks.Context) (*hooks.Context, error) {
		phase, _ := utils.SafeAssert[string](hc.Metadata[MetaPhase])
		if phase != proto.PhasePlanning.String() {
			return hc, nil
		}
		if autoApprove {
			hc.Metadata[MetaPlanApproved] = true
			return hc, nil
		}

		description := utils.AssertOr[string](hc.Metadata[MetaDescription], "accept the generated plan")
		gate(ctx, m, hc, proto.ApprovalTypePlan, description, MetaPlanApproved)
		return hc, nil
	}
}

// NewSystemGate returns a before_tool_call hook gating the fixed
// allow-list of dangerous system operations.
func NewSystemGate(m *Manager, autoApprove bool) hooks.Handler {
	return func(ctx context.Context, hc *hooks.Context) (*hooks.Context, error) {
		tool, _ := utils.SafeAssert[string](hc.Metadata[MetaTool])
		if !DangerousOperations[tool] {
			return hc, nil
		}
		if autoApprove {
			hc.Metadata[MetaSystemApproved] = true
			return hc, nil
		}

		description := utils.AssertOr[string](hc.Metadata[MetaDescription], fmt.Sprintf("run system operation %q", tool))
		gate(ctx, m, hc, proto.ApprovalTypeSystem, description, MetaSystemApproved)
		return hc, nil
	}
}
