package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"codeagent/pkg/proto"
)

func TestParsePlanningStrict(t *testing.T) {
	p := NewTwoTierParser()

	d := p.ParsePlanning(`Here is my decision:
{"decision": "search", "plan": "look up the API first", "queries": ["requests timeout", "retry pattern"]}`)
	assert.Equal(t, proto.PhaseSearching, d.Next)
	assert.Equal(t, "look up the API first", d.Plan)
	assert.Equal(t, []string{"requests timeout", "retry pattern"}, d.Queries)

	d = p.ParsePlanning(`{"decision": "code", "plan": "write main.py"}`)
	assert.Equal(t, proto.PhaseCoding, d.Next)
	assert.Equal(t, "write main.py", d.Plan)
}

func TestParsePlanningHeuristic(t *testing.T) {
	p := NewTwoTierParser()

	cases := []struct {
		text string
		want proto.Phase
	}{
		{"I should search for the library docs before coding.", proto.PhaseSearching},
		{"Some context is missing here.", proto.PhaseSearching},
		{"The task is clear, let's implement it.", proto.PhaseCoding},
		{"", proto.PhaseCoding},
		{`{"decision": "panic"}`, proto.PhaseCoding},
	}
	for _, tc := range cases {
		d := p.ParsePlanning(tc.text)
		assert.Equal(t, tc.want, d.Next, "text %q", tc.text)
	}
}

func TestParseReflectionStrict(t *testing.T) {
	p := NewTwoTierParser()

	d := p.ParseReflection(`{"scenario": "b", "analysis": "NameError on line 3"}`)
	assert.Equal(t, proto.ScenarioExecutionError, d.Scenario)
	assert.Equal(t, "NameError on line 3", d.Analysis)

	d = p.ParseReflection(`{"scenario": "A", "analysis": "output matches"}`)
	assert.Equal(t, proto.ScenarioSuccess, d.Scenario)
}

func TestParseReflectionHeuristicDefaultsToLogicError(t *testing.T) {
	p := NewTwoTierParser()

	cases := []struct {
		text string
		want proto.Scenario
	}{
		{"The run was a success, output matches the goal.", proto.ScenarioSuccess},
		{"Traceback (most recent call last): ...", proto.ScenarioExecutionError},
		{"The documentation for this API seems necessary.", proto.ScenarioKnowledgeGap},
		{"The numbers look wrong somehow.", proto.ScenarioLogicError},
		{"", proto.ScenarioLogicError},
		{`{"scenario": "Z"}`, proto.ScenarioLogicError},
	}
	for _, tc := range cases {
		d := p.ParseReflection(tc.text)
		assert.Equal(t, tc.want, d.Scenario, "text %q", tc.text)
	}
}

func TestParseCodeStrict(t *testing.T) {
	p := NewTwoTierParser()

	d := p.ParseCode(`{"files": {"main.py": "print(1)", "util.py": "x = 1"}, "entry": "main.py"}`, "main.py")
	assert.Equal(t, "main.py", d.Entry)
	assert.Len(t, d.Files, 2)
	assert.Equal(t, "print(1)", d.Files["main.py"])
}

func TestParseCodeEntryFallsBackWhenAbsent(t *testing.T) {
	p := NewTwoTierParser()

	// Entry names a file the map does not contain.
	d := p.ParseCode(`{"files": {"app.py": "print(1)"}, "entry": "main.py"}`, "main.py")
	assert.Equal(t, "app.py", d.Entry)
}

func TestParseCodeFencedFallback(t *testing.T) {
	p := NewTwoTierParser()

	d := p.ParseCode("Here you go:\n```python\nprint(\"ok\")\n```\nDone.", "main.py")
	assert.Equal(t, "main.py", d.Entry)
	assert.Equal(t, "print(\"ok\")", d.Files["main.py"])
}

func TestParseCodePlainTextFallback(t *testing.T) {
	p := NewTwoTierParser()

	d := p.ParseCode("print('hello')", "main.py")
	assert.Equal(t, "print('hello')", d.Files["main.py"])
}

func TestScenarioMappingIsPure(t *testing.T) {
	assert.Equal(t, proto.PhaseFinished, NextPhaseForScenario(proto.ScenarioSuccess))
	assert.Equal(t, proto.PhaseCoding, NextPhaseForScenario(proto.ScenarioExecutionError))
	assert.Equal(t, proto.PhaseSearching, NextPhaseForScenario(proto.ScenarioKnowledgeGap))
	assert.Equal(t, proto.PhaseCoding, NextPhaseForScenario(proto.ScenarioLogicError))
	assert.Equal(t, proto.PhaseCoding, NextPhaseForScenario(proto.Scenario("Z")))
}
