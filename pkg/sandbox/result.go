// Package sandbox executes untrusted generated code in an isolated
// working directory under a wall-clock timeout, capturing stdout,
// stderr, and the exit code. Failures never propagate as errors from an
// execution: spawn failures, I/O errors, and timeouts all surface as
// synthetic results so the workflow can reflect on them.
package sandbox

import (
	"strings"
	"time"
)

// SpawnFailureCode is the synthetic return code for executions that
// never produced a process exit code (spawn failure, I/O error, timeout).
const SpawnFailureCode = -1

// timeoutMarkerPrefix starts the synthesized stderr of a timed-out run.
// This is the only path that writes stderr instead of capturing it, so
// the marker must stay distinguishable from program-emitted errors.
const timeoutMarkerPrefix = "[sandbox] execution timed out after "

// ExecutionResult is the immutable record of one sandbox run. Its field
// names and types are the externally persisted contract for downstream
// tooling and must stay stable.
type ExecutionResult struct {
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	ReturnCode    int           `json:"return_code"`
	ExecutionTime time.Duration `json:"execution_time"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Success returns true if the run exited cleanly.
func (r *ExecutionResult) Success() bool {
	return r.ReturnCode == 0
}

// TimedOut reports whether this result was synthesized by the timeout
// path rather than captured from the process.
func (r *ExecutionResult) TimedOut() bool {
	return strings.HasPrefix(r.Stderr, timeoutMarkerPrefix)
}
