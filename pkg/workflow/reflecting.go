package workflow

import (
	"context"
	"fmt"
	"strings"

	"codeagent/pkg/model"
	"codeagent/pkg/proto"
	"codeagent/pkg/sandbox"
)

const reflectingSystemPrompt = `You are the reflection stage of an autonomous coding agent.
Judge the latest execution against the user's goal and classify the
outcome:

  A: the execution met the goal; the task is done.
  B: the code failed with a syntax or runtime error; it needs fixing.
  C: the failure reveals missing knowledge or API misuse; research is needed.
  D: the code ran but produced wrong results; the logic needs rework.

Respond with a JSON object:
{"scenario": "A" | "B" | "C" | "D", "analysis": "<what happened and what to change>"}`

// scenarioTransitions maps the reflection verdict to the next phase.
// This is the single source of truth for the reflection branch and a
// pure function of the classified scenario.
//
//nolint:gochecknoglobals // fixed mapping
var scenarioTransitions = map[proto.Scenario]proto.Phase{
	proto.ScenarioSuccess:        proto.PhaseFinished,
	proto.ScenarioExecutionError: proto.PhaseCoding,
	proto.ScenarioKnowledgeGap:   proto.PhaseSearching,
	proto.ScenarioLogicError:     proto.PhaseCoding,
}

// NextPhaseForScenario returns the phase the given verdict routes to.
// Unknown scenarios route like a logic error.
func NextPhaseForScenario(s proto.Scenario) proto.Phase {
	if next, ok := scenarioTransitions[s]; ok {
		return next
	}
	return scenarioTransitions[proto.ScenarioLogicError]
}

// ReflectingPhase judges the latest execution and picks the next phase
// from the A-D scenario classification.
type ReflectingPhase struct {
	deps *Deps
}

// NewReflectingPhase creates the reflecting phase.
func NewReflectingPhase(deps *Deps) *ReflectingPhase {
	return &ReflectingPhase{deps: deps}
}

// Type implements Phase.
func (p *ReflectingPhase) Type() proto.Phase {
	return proto.PhaseReflecting
}

// CanEnter requires at least one execution to reflect on.
func (p *ReflectingPhase) CanEnter(state *State) bool {
	return state.LastExecution != nil
}

// Execute asks the oracle for a verdict, records the analysis, and
// signals the scenario-mapped next phase.
func (p *ReflectingPhase) Execute(ctx context.Context, state *State) (Signal, error) {
	resp, err := p.deps.callOracle(ctx, state, p.buildPrompt(state))
	if err != nil {
		return Signal{}, fmt.Errorf("reflecting: %w", err)
	}

	decision := p.deps.Parser.ParseReflection(resp.Content)
	state.ErrorAnalysis = decision.Analysis
	state.AddReflectionNote(fmt.Sprintf("scenario %s: %s", decision.Scenario, decision.Analysis))
	state.Metadata["reflection_scenario"] = string(decision.Scenario)

	next := NextPhaseForScenario(decision.Scenario)
	p.deps.Logger.Info("verdict %s, next phase %s", decision.Scenario, next)
	return Signal{Next: next, Scenario: decision.Scenario}, nil
}

// buildPrompt assembles the reflection conversation from the goal, the
// entry file, and the latest execution result with its advisory failure
// category.
func (p *ReflectingPhase) buildPrompt(state *State) []model.CompletionMessage {
	last := state.LastExecution

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nEntry file %s:\n%s\n", state.UserGoal, state.CurrentFile, state.CodeFiles[state.CurrentFile])
	fmt.Fprintf(&b, "\nExecution: return code %d in %v\n", last.ReturnCode, last.ExecutionTime)
	if last.Stdout != "" {
		fmt.Fprintf(&b, "\nStdout:\n%s\n", last.Stdout)
	}
	if last.Stderr != "" {
		fmt.Fprintf(&b, "\nStderr:\n%s\n", last.Stderr)
		fmt.Fprintf(&b, "\nHeuristic failure category: %s\n", sandbox.Classify(last.Stderr))
	}

	return []model.CompletionMessage{
		model.NewSystemMessage(reflectingSystemPrompt),
		model.NewUserMessage(b.String()),
	}
}
