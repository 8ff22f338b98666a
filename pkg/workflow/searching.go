package workflow

import (
	"context"
	"fmt"
	"strings"

	"codeagent/pkg/hooks"
	"codeagent/pkg/model"
	"codeagent/pkg/proto"
	"codeagent/pkg/search"
	"codeagent/pkg/utils"
)

const searchSummaryPrompt = `You are the research stage of an autonomous coding agent.
Summarize the following search result in a few sentences, keeping only
what helps accomplish the stated goal. Answer with the summary text only.`

const postSearchPrompt = `You are the planning stage of an autonomous coding agent.
Research for the current task has just completed. Decide whether the plan
needs refinement with the new findings or whether coding can start now.

Respond with a JSON object:
{"decision": "search" | "code", "plan": ""}

Use "search" to refine the plan with the findings, "code" to start coding.`

// ToolWebSearch names the search tool in tool-call hook metadata.
const ToolWebSearch = "web_search"

// SearchingPhase runs one bounded research round: it executes the
// planned queries (at most MaxQueriesPerRound), caps each raw result by
// token count, summarizes it through the oracle, and asks the oracle
// whether to refine the plan or start coding.
type SearchingPhase struct {
	deps *Deps
}

// NewSearchingPhase creates the searching phase.
func NewSearchingPhase(deps *Deps) *SearchingPhase {
	return &SearchingPhase{deps: deps}
}

// Type implements Phase.
func (p *SearchingPhase) Type() proto.Phase {
	return proto.PhaseSearching
}

// CanEnter requires a plan to research against.
func (p *SearchingPhase) CanEnter(state *State) bool {
	return state.EffectivePlan() != ""
}

// Execute runs the research round. Individual query failures become
// textual error markers in the search context rather than aborting the
// round.
func (p *SearchingPhase) Execute(ctx context.Context, state *State) (Signal, error) {
	queries := p.pendingQueries(state)
	limit := p.deps.Config.Search.MaxQueriesPerRound
	if len(queries) > limit {
		p.deps.Logger.Warn("capping search round from %d to %d queries", len(queries), limit)
		queries = queries[:limit]
	}

	for _, query := range queries {
		raw := p.runQuery(ctx, state, query)
		raw = p.deps.Tokens.Truncate(raw, p.deps.Config.Search.MaxResultTokens)
		summary := p.summarize(ctx, state, query, raw)
		state.AddSearchEntry(query, raw, summary)
	}

	next, err := p.decideNext(ctx, state)
	if err != nil {
		return Signal{}, err
	}
	return Signal{Next: next}, nil
}

// pendingQueries reads the queries the planning phase requested, fed in
// by the driver; with none recorded it falls back to the user goal as a
// single query.
func (p *SearchingPhase) pendingQueries(state *State) []string {
	if queries, ok := utils.SafeAssert[[]string](state.Metadata["search_queries"]); ok && len(queries) > 0 {
		return queries
	}
	return []string{state.UserGoal}
}

// runQuery executes one search wrapped in tool-call hooks. A provider
// failure is converted into an error marker that flows into the next
// oracle prompt.
func (p *SearchingPhase) runQuery(ctx context.Context, state *State, query string) string {
	before := hooks.NewContext(hooks.BeforeToolCall, state)
	before.Metadata["tool"] = ToolWebSearch
	before.Metadata["query"] = query
	p.deps.Hooks.Trigger(ctx, hooks.BeforeToolCall, before)

	results, err := p.deps.Search.Search(ctx, query)

	after := hooks.NewContext(hooks.AfterToolCall, state)
	after.Metadata["tool"] = ToolWebSearch
	after.Metadata["query"] = query
	if err != nil {
		after.Metadata["tool_error"] = err.Error()
	}
	after = p.deps.Hooks.Trigger(ctx, hooks.AfterToolCall, after)
	mergeMetadata(state, after)

	if err != nil {
		p.deps.Logger.Warn("search %q failed: %v", query, err)
		return fmt.Sprintf("[search error: %v]", err)
	}
	return search.RenderResults(results)
}

// summarize condenses a raw result via the oracle; on oracle failure
// the capped raw text stands in for the summary.
func (p *SearchingPhase) summarize(ctx context.Context, state *State, query, raw string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nQuery: %s\n\nResult:\n%s", state.UserGoal, query, raw)

	resp, err := p.deps.callOracle(ctx, state, []model.CompletionMessage{
		model.NewSystemMessage(searchSummaryPrompt),
		model.NewUserMessage(b.String()),
	})
	if err != nil {
		p.deps.Logger.Warn("summarization failed for %q: %v", query, err)
		return raw
	}
	return strings.TrimSpace(resp.Content)
}

// decideNext asks the oracle whether to refine the plan or start
// coding. A "search" decision routes back to planning for refinement.
func (p *SearchingPhase) decideNext(ctx context.Context, state *State) (proto.Phase, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan:\n%s\n\nFindings:\n", state.EffectivePlan())
	for _, entry := range state.SearchContext {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Query, entry.Summary)
	}

	resp, err := p.deps.callOracle(ctx, state, []model.CompletionMessage{
		model.NewSystemMessage(postSearchPrompt),
		model.NewUserMessage(b.String()),
	})
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}

	if p.deps.Parser.ParsePlanning(resp.Content).Next == proto.PhaseSearching {
		return proto.PhasePlanning, nil
	}
	return proto.PhaseCoding, nil
}
