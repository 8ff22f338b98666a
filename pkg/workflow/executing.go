package workflow

import (
	"context"
	"errors"
	"fmt"

	"codeagent/pkg/approval"
	"codeagent/pkg/hooks"
	"codeagent/pkg/proto"
	"codeagent/pkg/utils"
)

// ErrNoCodeToRun signals entering the executing phase without any
// generated files. The phase records a fatal error analysis and stays.
var ErrNoCodeToRun = errors.New("no code files to execute")

// ExecutingPhase runs the generated code in the sandbox, behind the
// execution approval gate.
type ExecutingPhase struct {
	deps *Deps
}

// NewExecutingPhase creates the executing phase.
func NewExecutingPhase(deps *Deps) *ExecutingPhase {
	return &ExecutingPhase{deps: deps}
}

// Type implements Phase.
func (p *ExecutingPhase) Type() proto.Phase {
	return proto.PhaseExecuting
}

// CanEnter always passes; the missing-files case is handled inside
// Execute so it can record its diagnostic on the state.
func (p *ExecutingPhase) CanEnter(_ *State) bool {
	return true
}

// Execute gates the run through before_tool_call hooks, executes the
// entry file with the remaining files as auxiliaries, and appends the
// result. An operator denial is not an error: the run ends with the
// denial recorded.
func (p *ExecutingPhase) Execute(ctx context.Context, state *State) (Signal, error) {
	code, ok := state.CodeFiles[state.CurrentFile]
	if !ok || len(state.CodeFiles) == 0 {
		state.ErrorAnalysis = fmt.Sprintf("fatal: no runnable entry file %q among %d generated file(s)", state.CurrentFile, len(state.CodeFiles))
		return Signal{}, ErrNoCodeToRun
	}

	approved, reason := p.requestApproval(ctx, state)
	if !approved {
		state.AddReflectionNote(fmt.Sprintf("execution denied by operator: %s", reason))
		p.deps.Logger.Warn("execution denied: %s", reason)
		return Signal{Next: proto.PhaseFinished, Reason: reason}, nil
	}

	aux := make(map[string]string, len(state.CodeFiles))
	for path, content := range state.CodeFiles {
		if path != state.CurrentFile {
			aux[path] = content
		}
	}

	// An entry named differently from the sandbox's configured entry
	// file runs under its own name, so imports between the generated
	// files resolve as written.
	var command []string
	if state.CurrentFile != p.deps.Config.Sandbox.EntryFile {
		aux[state.CurrentFile] = code
		command = []string{p.deps.Config.Sandbox.Interpreter, state.CurrentFile}
	}

	result := p.deps.Sandbox.Execute(ctx, code, aux, command)
	state.AddExecutionResult(result)

	after := hooks.NewContext(hooks.AfterToolCall, state)
	after.Metadata[approval.MetaTool] = approval.ToolSandboxExecute
	after.Metadata["return_code"] = result.ReturnCode
	after = p.deps.Hooks.Trigger(ctx, hooks.AfterToolCall, after)
	mergeMetadata(state, after)

	p.deps.Logger.Info("execution finished: code=%d in %v", result.ReturnCode, result.ExecutionTime)
	return Signal{Next: proto.PhaseReflecting}, nil
}

// requestApproval triggers the before_tool_call chain and reads the
// execution gate's verdict from the metadata side channel. A missing
// verdict means no gate is registered and the run proceeds.
func (p *ExecutingPhase) requestApproval(ctx context.Context, state *State) (bool, string) {
	hc := hooks.NewContext(hooks.BeforeToolCall, state)
	hc.Metadata[approval.MetaTool] = approval.ToolSandboxExecute
	hc.Metadata[approval.MetaPhase] = state.CurrentPhase.String()
	hc.Metadata[approval.MetaDescription] = fmt.Sprintf("run %s (%d auxiliary file(s)) in sandbox", state.CurrentFile, len(state.CodeFiles)-1)
	hc = p.deps.Hooks.Trigger(ctx, hooks.BeforeToolCall, hc)
	mergeMetadata(state, hc)

	approved, present := utils.SafeAssert[bool](hc.Metadata[approval.MetaExecutionApproved])
	if !present {
		return true, ""
	}
	if approved {
		return true, ""
	}
	reason := utils.AssertOr[string](hc.Metadata[approval.MetaRejectionReason], "rejected")
	return false, reason
}
