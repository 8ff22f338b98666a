package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagent/pkg/approval"
	"codeagent/pkg/config"
	"codeagent/pkg/hooks"
	"codeagent/pkg/logx"
	"codeagent/pkg/model"
	"codeagent/pkg/proto"
	"codeagent/pkg/sandbox"
	"codeagent/pkg/search"
)

type execCall struct {
	code    string
	files   map[string]string
	command []string
}

// fakeExecutor records payloads and serves canned results in order,
// repeating the last one when exhausted.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []execCall
	results []sandbox.ExecutionResult
}

func (f *fakeExecutor) Execute(_ context.Context, code string, files map[string]string, command []string) sandbox.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, execCall{code: code, files: files, command: command})
	if len(f.results) == 0 {
		return sandbox.ExecutionResult{Stdout: "ok\n"}
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result
}

func newTestDeps(client model.LLMClient, provider search.Provider, executor CodeExecutor) *Deps {
	return &Deps{
		Client:  client,
		Search:  provider,
		Sandbox: executor,
		Hooks:   hooks.NewRegistry(nil),
		Parser:  NewTwoTierParser(),
		Config:  config.DefaultConfig(),
		Logger:  logx.NewLogger("workflow-test"),
	}
}

func TestDriverHappyPath(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "print ok"}`,
		`{"files": {"main.py": "print(\"ok\")"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "output matches the goal"}`,
	)
	executor := &fakeExecutor{}
	deps := newTestDeps(client, search.NewMockProvider(), executor)
	driver := NewDriver(deps, nil)

	state := NewState("print ok")
	require.NoError(t, driver.Run(context.Background(), state))

	assert.Equal(t, proto.PhaseFinished, state.CurrentPhase)
	assert.Equal(t, `print("ok")`, state.CodeFiles["main.py"])
	require.Len(t, state.ExecutionResults, 1)
	assert.Equal(t, "ok\n", state.LastExecution.Stdout)
	assert.NotEmpty(t, state.ReflectionNotes)
}

func TestDriverPhaseUpdateInvariant(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	deps := newTestDeps(client, search.NewMockProvider(), &fakeExecutor{})

	// The phase must already be current when before_agent fires.
	var seen []proto.Phase
	deps.Hooks.Register(hooks.BeforeAgent, "record-phase", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		st := hc.Data.(*State)
		seen = append(seen, st.CurrentPhase)
		return hc, nil
	})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	assert.Equal(t, []proto.Phase{
		proto.PhasePlanning, proto.PhaseCoding, proto.PhaseExecuting, proto.PhaseReflecting,
	}, seen)

	for _, tr := range state.Transitions {
		assert.True(t, IsValidTransition(tr.From, tr.To) || tr.From == tr.To,
			"transition %s -> %s", tr.From, tr.To)
	}
}

func TestDriverSearchRoundCapsQueries(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "search", "plan": "research first", "queries": ["q1", "q2", "q3", "q4", "q5"]}`,
		"summary one", "summary two", "summary three",
		`{"decision": "code"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	provider := search.NewMockProvider()
	deps := newTestDeps(client, provider, &fakeExecutor{})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	assert.Equal(t, []string{"q1", "q2", "q3"}, provider.Queries())
	assert.Len(t, state.SearchContext, 3)
	assert.Equal(t, "summary one", state.SearchContext[0].Summary)
	assert.Equal(t, proto.PhaseFinished, state.CurrentPhase)
}

func TestDriverSearchFailureBecomesMarker(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "search", "plan": "p", "queries": ["broken"]}`,
		"summary of the error",
		`{"decision": "code"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	provider := search.NewMockProvider()
	provider.FailOn("broken", assert.AnError)
	deps := newTestDeps(client, provider, &fakeExecutor{})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	require.Len(t, state.SearchContext, 1)
	assert.Contains(t, state.SearchContext[0].Raw, "[search error:")
}

func TestDriverReflectionRetryLoop(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"main.py": "1/0"}, "entry": "main.py"}`,
		`{"scenario": "B", "analysis": "ZeroDivisionError"}`,
		`{"files": {"main.py": "print(1)"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "fixed"}`,
	)
	executor := &fakeExecutor{results: []sandbox.ExecutionResult{
		{Stderr: "ZeroDivisionError: division by zero", ReturnCode: 1},
		{Stdout: "1\n"},
	}}
	deps := newTestDeps(client, search.NewMockProvider(), executor)

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	assert.Equal(t, proto.PhaseFinished, state.CurrentPhase)
	assert.Len(t, state.ExecutionResults, 2)
	assert.Equal(t, "print(1)", state.CodeFiles["main.py"])
	// The failing round's analysis fed the second coding prompt.
	assert.Len(t, state.ReflectionNotes, 2)
}

func TestDriverPayloadRoundTrip(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"main": "x"}, "entry": "main"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	executor := &fakeExecutor{}
	deps := newTestDeps(client, search.NewMockProvider(), executor)

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	require.Len(t, executor.calls, 1)
	assert.Equal(t, "x", executor.calls[0].code)
	// "main" is not the configured entry filename, so it runs under its
	// own name.
	assert.Equal(t, []string{"python3", "main"}, executor.calls[0].command)
	assert.Equal(t, map[string]string{"main": "x"}, executor.calls[0].files)
}

func TestDriverRunsNamedEntryWithHelpers(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"app.py": "import util", "util.py": "HELPER = 1"}, "entry": "app.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	executor := &fakeExecutor{}
	deps := newTestDeps(client, search.NewMockProvider(), executor)

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	require.Len(t, executor.calls, 1)
	call := executor.calls[0]
	assert.Equal(t, "import util", call.code)
	assert.Equal(t, []string{"python3", "app.py"}, call.command)
	assert.Equal(t, "import util", call.files["app.py"])
	assert.Equal(t, "HELPER = 1", call.files["util.py"])
}

func TestDriverDefaultEntryUsesDefaultCommand(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"main.py": "print(1)", "util.py": "HELPER = 1"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	executor := &fakeExecutor{}
	deps := newTestDeps(client, search.NewMockProvider(), executor)

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	require.Len(t, executor.calls, 1)
	call := executor.calls[0]
	assert.Equal(t, "print(1)", call.code)
	assert.Nil(t, call.command)
	assert.Equal(t, map[string]string{"util.py": "HELPER = 1"}, call.files)
}

func TestDriverGuardViolation(t *testing.T) {
	deps := newTestDeps(model.NewMockClientWithContent(), search.NewMockProvider(), &fakeExecutor{})

	state := NewState("   ")
	err := NewDriver(deps, nil).Run(context.Background(), state)

	require.ErrorIs(t, err, ErrPhaseGuard)
	assert.Equal(t, proto.PhasePlanning, state.CurrentPhase)
}

func TestDriverIterationBudget(t *testing.T) {
	// Scenario D forever: coding and reflecting ping-pong until the
	// budget trips.
	contents := []string{`{"decision": "code", "plan": "p"}`}
	for i := 0; i < 20; i++ {
		contents = append(contents,
			`{"files": {"main.py": "x"}, "entry": "main.py"}`,
			`{"scenario": "D", "analysis": "still wrong"}`,
		)
	}
	deps := newTestDeps(model.NewMockClientWithContent(contents...), search.NewMockProvider(), &fakeExecutor{})
	deps.Config.Workflow.MaxIterations = 7

	err := NewDriver(deps, nil).Run(context.Background(), NewState("task"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "iteration budget")
}

func TestDriverExecutionDenialFinishes(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "p"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
	)
	executor := &fakeExecutor{}
	deps := newTestDeps(client, search.NewMockProvider(), executor)
	deps.Hooks.Register(hooks.BeforeToolCall, "deny-execution", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		if hc.Metadata[approval.MetaTool] == approval.ToolSandboxExecute {
			hc.Metadata[approval.MetaExecutionApproved] = false
			hc.Metadata[approval.MetaRejectionReason] = "not on a friday"
		}
		return hc, nil
	})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	assert.Equal(t, proto.PhaseFinished, state.CurrentPhase)
	assert.Empty(t, executor.calls)
	require.Len(t, state.ReflectionNotes, 1)
	assert.Contains(t, state.ReflectionNotes[0], "not on a friday")
}

func TestDriverPlanRejectionReplans(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "first draft"}`,
		`{"decision": "code", "plan": "second draft"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	deps := newTestDeps(client, search.NewMockProvider(), &fakeExecutor{})

	rejected := false
	deps.Hooks.Register(hooks.AfterAgent, "reject-first-plan", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		if hc.Metadata[approval.MetaPhase] == proto.PhasePlanning.String() && !rejected {
			rejected = true
			hc.Metadata[approval.MetaPlanApproved] = false
			hc.Metadata[approval.MetaRejectionReason] = "too vague"
		}
		return hc, nil
	})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	assert.Equal(t, proto.PhaseFinished, state.CurrentPhase)
	assert.Equal(t, "first draft", state.Plan)
	assert.Equal(t, "second draft", state.RefinedPlan)

	// The rejection reason reached the second planning prompt.
	requests := client.Requests()
	require.GreaterOrEqual(t, len(requests), 2)
	assert.Contains(t, requests[1].Messages[1].Content, "too vague")
}

func TestDriverRejectionReasonNotReplayed(t *testing.T) {
	client := model.NewMockClientWithContent(
		`{"decision": "code", "plan": "first draft"}`,
		`{"decision": "search", "plan": "second draft", "queries": ["q1"]}`,
		"summary",
		`{"decision": "search"}`,
		`{"decision": "code", "plan": "third draft"}`,
		`{"files": {"main.py": "x"}, "entry": "main.py"}`,
		`{"scenario": "A", "analysis": "done"}`,
	)
	deps := newTestDeps(client, search.NewMockProvider(), &fakeExecutor{})

	rejected := false
	deps.Hooks.Register(hooks.AfterAgent, "reject-first-plan", 0, func(_ context.Context, hc *hooks.Context) (*hooks.Context, error) {
		if hc.Metadata[approval.MetaPhase] == proto.PhasePlanning.String() && !rejected {
			rejected = true
			hc.Metadata[approval.MetaPlanApproved] = false
			hc.Metadata[approval.MetaRejectionReason] = "too vague"
		}
		return hc, nil
	})

	state := NewState("task")
	require.NoError(t, NewDriver(deps, nil).Run(context.Background(), state))

	requests := client.Requests()
	require.Len(t, requests, 7)

	// The rejection rationale reaches the immediate re-plan only; the
	// post-search planning round starts clean.
	assert.Contains(t, requests[1].Messages[1].Content, "too vague")
	assert.NotContains(t, requests[4].Messages[1].Content, "too vague")
}

func TestExecutingPhaseNoFiles(t *testing.T) {
	deps := newTestDeps(model.NewMockClientWithContent(), search.NewMockProvider(), &fakeExecutor{})
	phase := NewExecutingPhase(deps)

	state := NewState("task")
	state.CurrentPhase = proto.PhaseExecuting

	_, err := phase.Execute(context.Background(), state)

	require.ErrorIs(t, err, ErrNoCodeToRun)
	assert.Contains(t, state.ErrorAnalysis, "fatal")
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, IsValidTransition(proto.PhasePlanning, proto.PhaseSearching))
	assert.True(t, IsValidTransition(proto.PhasePlanning, proto.PhaseCoding))
	assert.True(t, IsValidTransition(proto.PhaseSearching, proto.PhasePlanning))
	assert.True(t, IsValidTransition(proto.PhaseCoding, proto.PhaseExecuting))
	assert.True(t, IsValidTransition(proto.PhaseReflecting, proto.PhaseFinished))

	assert.False(t, IsValidTransition(proto.PhaseCoding, proto.PhaseFinished))
	assert.False(t, IsValidTransition(proto.PhaseFinished, proto.PhasePlanning))
	assert.False(t, IsValidTransition(proto.PhaseSearching, proto.PhaseReflecting))
}
