package sandbox

import (
	"context"
	"strings"
)

// testRunnerHarness drives the concatenated test payload. Exit code 0
// signifies all tests passed.
const testRunnerHarness = `

if __name__ == "__main__":
    import unittest
    unittest.main(verbosity=2)
`

// ExecuteTests concatenates the primary code with test code and a
// runner harness and executes it through the normal path.
func (s *Sandbox) ExecuteTests(ctx context.Context, code, testCode string, files map[string]string) ExecutionResult {
	var payload strings.Builder
	payload.WriteString(code)
	payload.WriteString("\n\n")
	payload.WriteString(testCode)
	payload.WriteString(testRunnerHarness)

	return s.Execute(ctx, payload.String(), files, nil)
}
