// Package workflow implements the five-phase coding pipeline: planning,
// searching, coding, executing, and reflecting, plus the driver that
// owns phase transitions. Phases consume the model oracle, mutate the
// shared workflow state, and hand a typed signal back to the driver,
// which consults the transition table and the hook pipeline before
// advancing.
package workflow

import (
	"time"

	"codeagent/pkg/proto"
	"codeagent/pkg/sandbox"
)

// SearchEntry is one (query, raw result, summary) triple. The search
// context is append-only within a run.
type SearchEntry struct {
	Query   string
	Raw     string
	Summary string
}

// Transition records one phase change for the audit trail.
type Transition struct {
	From proto.Phase
	To   proto.Phase
	At   time.Time
}

// State is the mutable record owned exclusively by one workflow run.
// It is passed by reference to each phase; no locking is needed because
// there is never a concurrent writer.
//
// CurrentPhase is updated only by the driver, never by phase logic, so
// there is a single authoritative transition point per step.
type State struct {
	ID           string
	CurrentPhase proto.Phase

	UserRequest string
	UserGoal    string
	Plan        string
	RefinedPlan string

	SearchContext []SearchEntry

	// CodeFiles maps file path to content; last write wins.
	// CurrentFile names the entry point.
	CodeFiles   map[string]string
	CurrentFile string

	// ExecutionResults is the append-only log of every sandbox run.
	// LastExecution points at the most recent entry.
	ExecutionResults []sandbox.ExecutionResult
	LastExecution    *sandbox.ExecutionResult

	ReflectionNotes []string

	// ErrorAnalysis holds the latest diagnostic, overwritten each
	// reflection cycle.
	ErrorAnalysis string

	// Metadata is the open side channel shared with hooks. Keys have no
	// schema; readers must check presence defensively.
	Metadata map[string]any

	// Transitions is the audit log of phase changes.
	Transitions []Transition

	// Iterations counts phase executions for the driver's loop budget.
	Iterations int
}

// NewState creates a workflow state for one user request, starting in
// the planning phase.
func NewState(userRequest string) *State {
	return &State{
		ID:           proto.GenerateWorkflowID(),
		CurrentPhase: proto.PhasePlanning,
		UserRequest:  userRequest,
		CodeFiles:    make(map[string]string),
		Metadata:     make(map[string]any),
	}
}

// AddExecutionResult appends a run to the execution log and refreshes
// the LastExecution back-reference.
func (s *State) AddExecutionResult(result sandbox.ExecutionResult) {
	s.ExecutionResults = append(s.ExecutionResults, result)
	s.LastExecution = &s.ExecutionResults[len(s.ExecutionResults)-1]
}

// AddSearchEntry appends one search round's output.
func (s *State) AddSearchEntry(query, raw, summary string) {
	s.SearchContext = append(s.SearchContext, SearchEntry{Query: query, Raw: raw, Summary: summary})
}

// AddReflectionNote appends a free-text reflection.
func (s *State) AddReflectionNote(note string) {
	s.ReflectionNotes = append(s.ReflectionNotes, note)
}

// RecordTransition appends a phase change to the audit log.
func (s *State) RecordTransition(from, to proto.Phase) {
	s.Transitions = append(s.Transitions, Transition{From: from, To: to, At: time.Now().UTC()})
}

// EffectivePlan returns the refined plan when present, else the
// original plan.
func (s *State) EffectivePlan() string {
	if s.RefinedPlan != "" {
		return s.RefinedPlan
	}
	return s.Plan
}
