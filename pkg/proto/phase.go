// Package proto defines the shared vocabulary used across the workflow:
// phase names, approval statuses and types, outcome scenarios, and ID
// generation. Keeping these in one leaf package avoids import cycles
// between the workflow, approval, and hook packages.
package proto

// Phase represents one stage of the fixed workflow pipeline.
type Phase string

// Workflow phases. FINISHED is terminal.
const (
	PhasePlanning   Phase = "PLANNING"
	PhaseSearching  Phase = "SEARCHING"
	PhaseCoding     Phase = "CODING"
	PhaseExecuting  Phase = "EXECUTING"
	PhaseReflecting Phase = "REFLECTING"
	PhaseFinished   Phase = "FINISHED"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if the phase ends the workflow.
func (p Phase) IsTerminal() bool {
	return p == PhaseFinished
}

// ValidPhases returns all phases in pipeline order.
func ValidPhases() []Phase {
	return []Phase{
		PhasePlanning, PhaseSearching, PhaseCoding,
		PhaseExecuting, PhaseReflecting, PhaseFinished,
	}
}

// IsValidPhase checks whether the given phase is one of the known phases.
func IsValidPhase(p Phase) bool {
	for _, v := range ValidPhases() {
		if p == v {
			return true
		}
	}
	return false
}

// Scenario is the four-way classification of an execution outcome,
// produced by the reflecting phase and used to pick the next phase.
type Scenario string

const (
	// ScenarioSuccess means the execution met the user goal (A).
	ScenarioSuccess Scenario = "A"
	// ScenarioExecutionError means a syntax or runtime failure (B).
	ScenarioExecutionError Scenario = "B"
	// ScenarioKnowledgeGap means missing knowledge or API misuse (C).
	ScenarioKnowledgeGap Scenario = "C"
	// ScenarioLogicError means the code ran but produced wrong results (D).
	ScenarioLogicError Scenario = "D"
)

// IsValidScenario checks whether the scenario is one of A-D.
func IsValidScenario(s Scenario) bool {
	switch s {
	case ScenarioSuccess, ScenarioExecutionError, ScenarioKnowledgeGap, ScenarioLogicError:
		return true
	default:
		return false
	}
}
