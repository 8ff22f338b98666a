package workflow

import (
	"context"
	"errors"
	"fmt"

	"codeagent/pkg/config"
	"codeagent/pkg/hooks"
	"codeagent/pkg/logx"
	"codeagent/pkg/model"
	"codeagent/pkg/proto"
	"codeagent/pkg/sandbox"
	"codeagent/pkg/search"
	"codeagent/pkg/utils"
)

// ErrPhaseGuard signals an attempt to run a phase whose entry guard
// failed. This is a programming or ordering bug, not a user-facing
// failure, and it is fatal to the current step.
var ErrPhaseGuard = errors.New("phase entry guard violated")

// ErrInvalidTransition signals a phase requesting a successor the
// transition table does not allow.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Signal is the typed outcome a phase hands back to the driver in place
// of loose metadata: the requested next phase plus the decision data
// that justified it.
type Signal struct {
	// Next is the phase the driver should run next.
	Next proto.Phase

	// Queries carries planned search queries when Next is SEARCHING.
	Queries []string

	// Scenario carries the reflection verdict when set.
	Scenario proto.Scenario

	// Reason is a free-text note recorded in the state metadata.
	Reason string
}

// Phase is one stage of the workflow pipeline.
type Phase interface {
	// Type identifies the phase.
	Type() proto.Phase

	// CanEnter is the entry guard checked by the driver before running
	// the phase.
	CanEnter(state *State) bool

	// Execute does the phase's work, mutating state in place, and
	// returns the signal naming the next phase. An error means the
	// step failed and the state stays in the current phase.
	Execute(ctx context.Context, state *State) (Signal, error)
}

// CodeExecutor runs a code payload and reports a structured result.
// *sandbox.Sandbox satisfies it; tests use fakes.
type CodeExecutor interface {
	Execute(ctx context.Context, code string, files map[string]string, command []string) sandbox.ExecutionResult
}

// Deps bundles the collaborators shared by every phase. One Deps value
// belongs to one workflow run; the sandbox in particular must not be
// shared across concurrent runs.
type Deps struct {
	Client  model.LLMClient
	Search  search.Provider
	Sandbox CodeExecutor
	Hooks   *hooks.Registry
	Parser  DecisionParser
	Config  *config.Config
	Tokens  *utils.TokenCounter
	Logger  *logx.Logger
}

// callOracle sends messages to the model through the before/after model
// hook events. Hook metadata from the call is merged into the state's
// metadata side channel.
func (d *Deps) callOracle(ctx context.Context, state *State, messages []model.CompletionMessage) (model.CompletionResponse, error) {
	hc := hooks.NewContext(hooks.BeforeModel, state)
	hc.Metadata["phase"] = state.CurrentPhase.String()
	hc = d.Hooks.Trigger(ctx, hooks.BeforeModel, hc)

	resp, err := d.Client.Complete(ctx, model.NewCompletionRequest(messages))

	after := hooks.NewContext(hooks.AfterModel, state)
	after.Metadata["phase"] = state.CurrentPhase.String()
	if err != nil {
		after.Metadata["model_error"] = err.Error()
	}
	after = d.Hooks.Trigger(ctx, hooks.AfterModel, after)
	mergeMetadata(state, after)

	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("oracle call failed: %w", err)
	}
	return resp, nil
}

// mergeMetadata copies hook-produced metadata into the state's side
// channel, last write wins.
func mergeMetadata(state *State, hc *hooks.Context) {
	for k, v := range hc.Metadata {
		state.Metadata[k] = v
	}
}
