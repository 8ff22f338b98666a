package workflow

import (
	"context"
	"fmt"

	"codeagent/pkg/approval"
	"codeagent/pkg/hooks"
	"codeagent/pkg/metrics"
	"codeagent/pkg/proto"
	"codeagent/pkg/utils"
)

// PhaseTransitions is the canonical transition map. Any phase signal
// must name a successor allowed here; everything else is a programming
// bug surfaced as ErrInvalidTransition.
//
// PLANNING to PLANNING covers an operator plan rejection (re-plan), and
// EXECUTING to FINISHED covers an operator execution denial.
//
//nolint:gochecknoglobals // fixed transition table
var PhaseTransitions = map[proto.Phase][]proto.Phase{
	proto.PhasePlanning:   {proto.PhasePlanning, proto.PhaseSearching, proto.PhaseCoding},
	proto.PhaseSearching:  {proto.PhasePlanning, proto.PhaseCoding},
	proto.PhaseCoding:     {proto.PhaseExecuting},
	proto.PhaseExecuting:  {proto.PhaseReflecting, proto.PhaseFinished},
	proto.PhaseReflecting: {proto.PhaseFinished, proto.PhaseCoding, proto.PhaseSearching},
}

// IsValidTransition checks a phase change against the canonical table.
func IsValidTransition(from, to proto.Phase) bool {
	for _, allowed := range PhaseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Driver owns one workflow run: it is the only component that updates
// the current phase, and it wraps every phase execution in the
// before/after agent hook events.
type Driver struct {
	deps     *Deps
	phases   map[proto.Phase]Phase
	recorder *metrics.Recorder
}

// NewDriver wires the five phases around the shared dependencies.
func NewDriver(deps *Deps, recorder *metrics.Recorder) *Driver {
	d := &Driver{
		deps:     deps,
		recorder: recorder,
		phases: map[proto.Phase]Phase{
			proto.PhasePlanning:   NewPlanningPhase(deps),
			proto.PhaseSearching:  NewSearchingPhase(deps),
			proto.PhaseCoding:     NewCodingPhase(deps),
			proto.PhaseExecuting:  NewExecutingPhase(deps),
			proto.PhaseReflecting: NewReflectingPhase(deps),
		},
	}
	return d
}

// Run advances the workflow from planning until it reaches FINISHED,
// exceeds the iteration budget, or hits a fatal error. The state stays
// in its current phase on error; nothing advances silently.
func (d *Driver) Run(ctx context.Context, state *State) error {
	next := proto.PhasePlanning

	for !next.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workflow %s canceled: %w", state.ID, err)
		}

		state.Iterations++
		if max := d.deps.Config.Workflow.MaxIterations; state.Iterations > max {
			return fmt.Errorf("workflow %s exceeded iteration budget of %d in phase %s", state.ID, max, state.CurrentPhase)
		}

		phase, ok := d.phases[next]
		if !ok {
			return fmt.Errorf("no phase registered for %s", next)
		}

		var sig Signal
		var err error
		state, sig, err = d.runPhase(ctx, phase, state)
		if err != nil {
			return err
		}

		next = d.applyGateVerdicts(state, phase.Type(), sig)
	}

	d.updatePhase(state, proto.PhaseFinished)
	d.deps.Logger.Info("workflow %s finished after %d iteration(s)", state.ID, state.Iterations)
	return nil
}

// runPhase executes one phase step: guard, authoritative phase update,
// before_agent hooks, execute, after_agent hooks, transition check.
// Hooks may replace the state wholesale through the context's data but
// never change its type.
func (d *Driver) runPhase(ctx context.Context, phase Phase, state *State) (*State, Signal, error) {
	if !phase.CanEnter(state) {
		return state, Signal{}, fmt.Errorf("%w: %s rejected entry from %s", ErrPhaseGuard, phase.Type(), state.CurrentPhase)
	}

	d.updatePhase(state, phase.Type())
	state = d.triggerAgentHooks(ctx, hooks.BeforeAgent, state)

	sig, err := phase.Execute(ctx, state)
	if err != nil {
		return state, Signal{}, fmt.Errorf("phase %s failed: %w", phase.Type(), err)
	}

	state = d.triggerAgentHooks(ctx, hooks.AfterAgent, state)

	if !IsValidTransition(phase.Type(), sig.Next) {
		return state, Signal{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, phase.Type(), sig.Next)
	}
	return state, sig, nil
}

// triggerAgentHooks runs one agent-level hook chain and folds its
// metadata back into the state's side channel.
func (d *Driver) triggerAgentHooks(ctx context.Context, event hooks.EventType, state *State) *State {
	hc := hooks.NewContext(event, state)
	hc.Metadata[approval.MetaPhase] = state.CurrentPhase.String()
	hc = d.deps.Hooks.Trigger(ctx, event, hc)

	if replaced, ok := utils.SafeAssert[*State](hc.Data); ok {
		state = replaced
	}
	mergeMetadata(state, hc)
	return state
}

// applyGateVerdicts folds hook verdicts into the routing decision and
// stages the signal's payload for the next phase.
func (d *Driver) applyGateVerdicts(state *State, from proto.Phase, sig Signal) proto.Phase {
	next := sig.Next

	// An operator plan rejection sends planning around again; the
	// rejection reason stays behind for the revised prompt.
	if from == proto.PhasePlanning {
		if approved, ok := utils.SafeAssert[bool](state.Metadata[approval.MetaPlanApproved]); ok && !approved {
			delete(state.Metadata, approval.MetaPlanApproved)
			d.deps.Logger.Warn("plan rejected by operator, re-planning")
			return proto.PhasePlanning
		}
	}

	if next == proto.PhaseSearching {
		state.Metadata["search_queries"] = sig.Queries
	}
	if sig.Reason != "" {
		state.Metadata["finish_reason"] = sig.Reason
	}
	return next
}

// updatePhase is the single authoritative transition point.
func (d *Driver) updatePhase(state *State, to proto.Phase) {
	from := state.CurrentPhase
	state.CurrentPhase = to
	state.RecordTransition(from, to)
	d.recorder.ObservePhaseTransition(from.String(), to.String())
	d.deps.Logger.Debug("phase %s -> %s", from, to)
}
