package workflow

import (
	"encoding/json"
	"strings"

	"codeagent/pkg/logx"
	"codeagent/pkg/proto"
)

// PlanningDecision is the parsed outcome of a planning or post-search
// oracle response.
type PlanningDecision struct {
	// Next is SEARCHING or CODING.
	Next    proto.Phase
	Plan    string
	Queries []string
}

// ReflectionDecision is the parsed outcome of a reflection oracle
// response.
type ReflectionDecision struct {
	Scenario proto.Scenario
	Analysis string
}

// CodeDecision is the parsed outcome of a coding oracle response.
type CodeDecision struct {
	// Files maps file path to content.
	Files map[string]string
	// Entry names the entry-point file; empty means the caller's
	// configured default.
	Entry string
}

// DecisionParser turns raw oracle text into phase decisions. Oracle
// output is inherently unreliable, so implementations must always
// produce a usable decision; parse failures degrade, never fail.
type DecisionParser interface {
	ParsePlanning(text string) PlanningDecision
	ParseReflection(text string) ReflectionDecision
	ParseCode(text string, defaultEntry string) CodeDecision
}

// TwoTierParser tries a strict structured parse first and falls back to
// a keyword heuristic. The heuristic's defaults are deliberately safe:
// ambiguous planning text routes to CODING, ambiguous reflection text
// to scenario D (logic error, back to coding).
type TwoTierParser struct {
	logger *logx.Logger
}

// NewTwoTierParser creates the default decision parser.
func NewTwoTierParser() *TwoTierParser {
	return &TwoTierParser{logger: logx.NewLogger("parser")}
}

type planningPayload struct {
	Decision string   `json:"decision"`
	Plan     string   `json:"plan"`
	Queries  []string `json:"queries"`
}

// ParsePlanning extracts the planning decision. Strict tier: a JSON
// object with "decision" (search|code), "plan", and optional "queries".
// Fallback tier: text mentioning "search" or "missing" routes to
// SEARCHING, anything else to CODING with the raw text as plan.
func (p *TwoTierParser) ParsePlanning(text string) PlanningDecision {
	var payload planningPayload
	if unmarshalObject(text, &payload) {
		switch strings.ToLower(strings.TrimSpace(payload.Decision)) {
		case "search", "searching":
			return PlanningDecision{Next: proto.PhaseSearching, Plan: payload.Plan, Queries: payload.Queries}
		case "code", "coding":
			return PlanningDecision{Next: proto.PhaseCoding, Plan: payload.Plan}
		}
		p.logger.Debug("planning decision %q not recognized, falling back to heuristic", payload.Decision)
	}

	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "search") || strings.Contains(lowered, "missing") {
		return PlanningDecision{Next: proto.PhaseSearching, Plan: text}
	}
	return PlanningDecision{Next: proto.PhaseCoding, Plan: text}
}

type reflectionPayload struct {
	Scenario string `json:"scenario"`
	Analysis string `json:"analysis"`
}

// ParseReflection extracts the reflection verdict. Strict tier: a JSON
// object with "scenario" (A-D) and "analysis". Fallback tier: keyword
// scan, defaulting every ambiguous response to scenario D.
func (p *TwoTierParser) ParseReflection(text string) ReflectionDecision {
	var payload reflectionPayload
	if unmarshalObject(text, &payload) {
		scenario := proto.Scenario(strings.ToUpper(strings.TrimSpace(payload.Scenario)))
		if proto.IsValidScenario(scenario) {
			return ReflectionDecision{Scenario: scenario, Analysis: payload.Analysis}
		}
		p.logger.Debug("reflection scenario %q not recognized, falling back to heuristic", payload.Scenario)
	}

	return ReflectionDecision{Scenario: classifyReflectionText(text), Analysis: text}
}

// classifyReflectionText is the heuristic tier for reflection verdicts.
func classifyReflectionText(text string) proto.Scenario {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "scenario a") || strings.Contains(lowered, "success"):
		return proto.ScenarioSuccess
	case strings.Contains(lowered, "scenario b") || strings.Contains(lowered, "syntax") ||
		strings.Contains(lowered, "traceback") || strings.Contains(lowered, "exception") ||
		strings.Contains(lowered, "crash"):
		return proto.ScenarioExecutionError
	case strings.Contains(lowered, "scenario c") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "documentation") || strings.Contains(lowered, "unfamiliar"):
		return proto.ScenarioKnowledgeGap
	default:
		return proto.ScenarioLogicError
	}
}

type codePayload struct {
	Files map[string]string `json:"files"`
	Entry string            `json:"entry"`
}

// ParseCode extracts generated code. Strict tier: a JSON object with a
// "files" path-to-content map and optional "entry". Fallback tier: the
// first fenced code block (or the whole response) becomes the default
// entry file.
func (p *TwoTierParser) ParseCode(text, defaultEntry string) CodeDecision {
	var payload codePayload
	if unmarshalObject(text, &payload) && len(payload.Files) > 0 {
		entry := payload.Entry
		if _, ok := payload.Files[entry]; !ok {
			entry = ""
		}
		if entry == "" {
			if _, ok := payload.Files[defaultEntry]; ok {
				entry = defaultEntry
			} else {
				entry = firstKey(payload.Files)
			}
		}
		return CodeDecision{Files: payload.Files, Entry: entry}
	}

	code := extractFencedBlock(text)
	if code == "" {
		code = strings.TrimSpace(text)
	}
	return CodeDecision{
		Files: map[string]string{defaultEntry: code},
		Entry: defaultEntry,
	}
}

// unmarshalObject finds the outermost JSON object in text and
// unmarshals it, reporting whether a parse succeeded.
func unmarshalObject(text string, out any) bool {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(text[start:end+1]), out) == nil
}

// extractFencedBlock returns the body of the first triple-backtick
// fenced block, stripping an optional language tag line.
func extractFencedBlock(text string) string {
	const fence = "```"
	start := strings.Index(text, fence)
	if start < 0 {
		return ""
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, fence)
	if end < 0 {
		return ""
	}
	block := rest[:end]
	if nl := strings.Index(block, "\n"); nl >= 0 {
		// First line is a language tag when it has no spaces.
		tag := strings.TrimSpace(block[:nl])
		if tag != "" && !strings.ContainsAny(tag, " \t") {
			block = block[nl+1:]
		}
	}
	return strings.TrimRight(strings.TrimLeft(block, "\n"), "\n")
}

// firstKey returns the lexicographically smallest key so the fallback
// entry choice is deterministic.
func firstKey(m map[string]string) string {
	best := ""
	for k := range m {
		if best == "" || k < best {
			best = k
		}
	}
	return best
}
