package workflow

import (
	"context"
	"fmt"
	"strings"

	"codeagent/pkg/approval"
	"codeagent/pkg/model"
	"codeagent/pkg/proto"
	"codeagent/pkg/utils"
)

const planningSystemPrompt = `You are the planning stage of an autonomous coding agent.
Given the user's request, produce a concrete implementation plan and decide
whether enough is known to start coding or whether a web search round is
needed first.

Respond with a JSON object:
{"decision": "code" | "search", "plan": "<step-by-step plan>", "queries": ["<query>", ...]}

Include "queries" only when the decision is "search".`

// PlanningPhase produces the implementation plan and decides between
// searching and coding. On re-entry (refinement after a search round or
// an operator plan rejection) it folds the gathered context into a
// refined plan.
type PlanningPhase struct {
	deps *Deps
}

// NewPlanningPhase creates the planning phase.
func NewPlanningPhase(deps *Deps) *PlanningPhase {
	return &PlanningPhase{deps: deps}
}

// Type implements Phase.
func (p *PlanningPhase) Type() proto.Phase {
	return proto.PhasePlanning
}

// CanEnter requires a non-empty user request.
func (p *PlanningPhase) CanEnter(state *State) bool {
	return strings.TrimSpace(state.UserRequest) != ""
}

// Execute asks the oracle for a plan and a search-or-code decision.
func (p *PlanningPhase) Execute(ctx context.Context, state *State) (Signal, error) {
	resp, err := p.deps.callOracle(ctx, state, p.buildPrompt(state))
	if err != nil {
		return Signal{}, fmt.Errorf("planning: %w", err)
	}
	// The rejection rationale has been folded into this prompt; a later
	// re-entry (e.g. after a search round) starts clean.
	delete(state.Metadata, approval.MetaRejectionReason)

	decision := p.deps.Parser.ParsePlanning(resp.Content)
	if state.Plan == "" {
		state.Plan = decision.Plan
	} else {
		state.RefinedPlan = decision.Plan
	}
	if state.UserGoal == "" {
		state.UserGoal = state.UserRequest
	}
	state.Metadata["planning_decision"] = decision.Next.String()

	p.deps.Logger.Info("plan ready, next phase %s", decision.Next)
	return Signal{Next: decision.Next, Queries: decision.Queries}, nil
}

// buildPrompt assembles the planning conversation, folding in prior
// search summaries and any operator rejection of the previous plan.
func (p *PlanningPhase) buildPrompt(state *State) []model.CompletionMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "User request:\n%s\n", state.UserRequest)

	if state.Plan != "" {
		fmt.Fprintf(&b, "\nPrevious plan:\n%s\n", state.EffectivePlan())
	}
	if reason, ok := utils.SafeAssert[string](state.Metadata[approval.MetaRejectionReason]); ok && reason != "" {
		fmt.Fprintf(&b, "\nThe previous plan was rejected by the operator: %s\nRevise the plan accordingly.\n", reason)
	}
	if len(state.SearchContext) > 0 {
		b.WriteString("\nGathered research:\n")
		for _, entry := range state.SearchContext {
			fmt.Fprintf(&b, "- %s: %s\n", entry.Query, entry.Summary)
		}
	}

	return []model.CompletionMessage{
		model.NewSystemMessage(planningSystemPrompt),
		model.NewUserMessage(b.String()),
	}
}
