package workflow

import (
	"context"
	"fmt"
	"strings"

	"codeagent/pkg/model"
	"codeagent/pkg/proto"
)

const codingSystemPrompt = `You are the coding stage of an autonomous coding agent.
Write complete, runnable code implementing the plan. The code runs
unattended, so it must not prompt for input.

Respond with a JSON object:
{"files": {"<path>": "<full file content>", ...}, "entry": "<entry file path>"}

If you cannot produce JSON, respond with a single fenced code block
containing the entry file.`

// CodingPhase turns the plan, research, and any prior failure analysis
// into a set of code files.
type CodingPhase struct {
	deps *Deps
}

// NewCodingPhase creates the coding phase.
func NewCodingPhase(deps *Deps) *CodingPhase {
	return &CodingPhase{deps: deps}
}

// Type implements Phase.
func (p *CodingPhase) Type() proto.Phase {
	return proto.PhaseCoding
}

// CanEnter requires a plan to implement.
func (p *CodingPhase) CanEnter(state *State) bool {
	return state.EffectivePlan() != ""
}

// Execute asks the oracle for code and replaces the state's file set.
func (p *CodingPhase) Execute(ctx context.Context, state *State) (Signal, error) {
	resp, err := p.deps.callOracle(ctx, state, p.buildPrompt(state))
	if err != nil {
		return Signal{}, fmt.Errorf("coding: %w", err)
	}

	decision := p.deps.Parser.ParseCode(resp.Content, p.deps.Config.Sandbox.EntryFile)
	for path, content := range decision.Files {
		state.CodeFiles[path] = content
	}
	state.CurrentFile = decision.Entry

	p.deps.Logger.Info("generated %d file(s), entry %s", len(decision.Files), decision.Entry)
	return Signal{Next: proto.PhaseExecuting}, nil
}

// buildPrompt assembles the coding conversation from the plan, search
// summaries, previous code, and the latest error analysis.
func (p *CodingPhase) buildPrompt(state *State) []model.CompletionMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nPlan:\n%s\n", state.UserGoal, state.EffectivePlan())

	if len(state.SearchContext) > 0 {
		b.WriteString("\nResearch notes:\n")
		for _, entry := range state.SearchContext {
			fmt.Fprintf(&b, "- %s: %s\n", entry.Query, entry.Summary)
		}
	}
	if state.ErrorAnalysis != "" {
		fmt.Fprintf(&b, "\nThe previous attempt failed. Analysis:\n%s\n", state.ErrorAnalysis)
	}
	if len(state.CodeFiles) > 0 && state.ErrorAnalysis != "" {
		b.WriteString("\nPrevious code:\n")
		for path, content := range state.CodeFiles {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", path, content)
		}
		b.WriteString("\nRewrite the code to fix the problem.\n")
	}

	return []model.CompletionMessage{
		model.NewSystemMessage(codingSystemPrompt),
		model.NewUserMessage(b.String()),
	}
}
