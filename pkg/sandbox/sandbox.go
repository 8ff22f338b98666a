package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeagent/pkg/config"
	"codeagent/pkg/logx"
	"codeagent/pkg/metrics"
)

// killGracePeriod bounds how long a timed-out child may linger between
// SIGKILL and reaping.
const killGracePeriod = 2 * time.Second

// Sandbox runs code payloads in an isolated working directory. One
// sandbox belongs to exactly one workflow; concurrent use of a single
// instance by multiple workflows is unsafe and must be prevented by the
// caller. Each Execute call gets a fresh run directory underneath the
// sandbox's base directory.
type Sandbox struct {
	cfg      config.SandboxConfig
	baseDir  string
	logger   *logx.Logger
	recorder *metrics.Recorder
	closed   bool
}

// NewSandbox provisions a sandbox under cfg.WorkDir (or the system temp
// directory). Provisioning failure is the one fatal sandbox error.
func NewSandbox(cfg config.SandboxConfig, recorder *metrics.Recorder) (*Sandbox, error) {
	baseDir, err := os.MkdirTemp(cfg.WorkDir, "codeagent-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to provision sandbox directory: %w", err)
	}
	return &Sandbox{
		cfg:      cfg,
		baseDir:  baseDir,
		logger:   logx.NewLogger("sandbox"),
		recorder: recorder,
	}, nil
}

// Dir returns the sandbox's base directory.
func (s *Sandbox) Dir() string {
	return s.baseDir
}

// Close releases the sandbox's working directory. Safe to call twice.
func (s *Sandbox) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.baseDir); err != nil {
		return fmt.Errorf("failed to remove sandbox directory: %w", err)
	}
	return nil
}

// Execute runs the primary code payload with auxiliary files in a fresh
// run directory under a wall-clock timeout. command overrides the
// default invocation (interpreter + entry file). All failures surface
// in the result: a spawn or I/O failure yields return code -1 with the
// error in stderr, and a timeout yields return code -1 with a synthetic
// timeout marker in stderr.
func (s *Sandbox) Execute(ctx context.Context, code string, files map[string]string, command []string) ExecutionResult {
	start := time.Now()

	runDir, err := s.provisionRun(code, files)
	if err != nil {
		return s.finish(syntheticFailure(start, err), "provision_error")
	}

	if len(command) == 0 {
		command = []string{s.cfg.Interpreter, s.cfg.EntryFile}
	}

	timeout := s.cfg.Timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Dir = runDir
	cmd.Env = s.environment()
	cmd.WaitDelay = killGracePeriod

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	// Timeout: the child was forcibly terminated and reaped; report a
	// synthesized stderr marker distinguishable from program output.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result := ExecutionResult{
			Stdout:        stdout.String(),
			Stderr:        fmt.Sprintf("%s%s", timeoutMarkerPrefix, timeout),
			ReturnCode:    SpawnFailureCode,
			ExecutionTime: elapsed,
			Timestamp:     start.UTC(),
		}
		return s.finish(result, "timeout")
	}

	exitCode := 0
	status := "success"
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
			status = "failure"
		} else {
			// Could not spawn or wait on the process at all.
			return s.finish(syntheticFailure(start, runErr), "spawn_error")
		}
	}

	result := ExecutionResult{
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ReturnCode:    exitCode,
		ExecutionTime: elapsed,
		Timestamp:     start.UTC(),
	}
	return s.finish(result, status)
}

// provisionRun creates a fresh run directory containing the entry file
// and every auxiliary file, creating subdirectories as needed.
func (s *Sandbox) provisionRun(code string, files map[string]string) (string, error) {
	runDir, err := os.MkdirTemp(s.baseDir, "run-")
	if err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	for path, content := range files {
		if err := s.writeFile(runDir, path, content); err != nil {
			return "", err
		}
	}

	// The primary payload wins the entry path; a colliding auxiliary
	// file is overwritten loudly, never dropped in silence.
	if aux, exists := files[s.cfg.EntryFile]; exists && aux != code {
		s.logger.Warn("auxiliary file %s collides with the primary payload and is overwritten", s.cfg.EntryFile)
	}
	if err := s.writeFile(runDir, s.cfg.EntryFile, code); err != nil {
		return "", err
	}
	return runDir, nil
}

// writeFile writes one file inside the run directory, rejecting paths
// that would escape it.
func (s *Sandbox) writeFile(runDir, path, content string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute file path %q not allowed in sandbox", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file path %q escapes sandbox directory", path)
	}

	full := filepath.Join(runDir, clean)
	if dir := filepath.Dir(full); dir != runDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// environment builds the child environment from the whitelisted
// passthrough variables only.
func (s *Sandbox) environment() []string {
	env := make([]string, 0, len(s.cfg.EnvPassthrough))
	for _, name := range s.cfg.EnvPassthrough {
		if value, exists := os.LookupEnv(name); exists {
			env = append(env, name+"="+value)
		}
	}
	return env
}

func (s *Sandbox) finish(result ExecutionResult, status string) ExecutionResult {
	s.recorder.ObserveSandboxRun(status, result.ExecutionTime)
	s.logger.Debug("execution finished: status=%s code=%d in %v", status, result.ReturnCode, result.ExecutionTime)
	return result
}

// syntheticFailure builds the result reported for process-level errors
// that prevented capturing real output.
func syntheticFailure(start time.Time, err error) ExecutionResult {
	return ExecutionResult{
		Stderr:        fmt.Sprintf("[sandbox] %v", err),
		ReturnCode:    SpawnFailureCode,
		ExecutionTime: time.Since(start),
		Timestamp:     start.UTC(),
	}
}
