// Package config provides configuration loading and validation for the
// agent workflow: oracle model selection, sandbox limits, approval gate
// behavior, and search bounds.
//
// Configuration is strictly separated from state: build artifacts,
// execution results, and workflow progress never live here. Secrets
// (provider API keys) are stored in an encrypted sidecar file, see
// secrets.go.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in ModelConfig.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Environment variables consulted for provider API keys.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// Config is the root configuration for one agent process.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Approval ApprovalConfig `yaml:"approval"`
	Search   SearchConfig   `yaml:"search"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

// ModelConfig selects and tunes the oracle backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	Host        string  `yaml:"host"` // ollama server URL, ignored by other providers
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// SandboxConfig bounds sandboxed code execution.
type SandboxConfig struct {
	// WorkDir is the base directory for sandbox working directories.
	// Empty means the system temp directory.
	WorkDir string `yaml:"work_dir"`

	// Interpreter invokes the primary entry file when no command
	// override is given.
	Interpreter string `yaml:"interpreter"`

	// EntryFile is the filename the primary code payload is written to.
	EntryFile string `yaml:"entry_file"`

	// TimeoutSeconds is the wall-clock budget per execution.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// EnvPassthrough lists environment variable names inherited from
	// the parent process. Everything else is stripped.
	EnvPassthrough []string `yaml:"env_passthrough"`
}

// Timeout returns the execution timeout as a duration.
func (s *SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ApprovalConfig controls the human-in-the-loop gate. Auto-approve flags
// allow non-interactive runs to skip the corresponding gate entirely.
type ApprovalConfig struct {
	AutoApproveExecution bool `yaml:"auto_approve_execution"`
	AutoApprovePlan      bool `yaml:"auto_approve_plan"`
	AutoApproveSystem    bool `yaml:"auto_approve_system"`
	TimeoutMinutes       int  `yaml:"timeout_minutes"`
}

// Timeout returns the approval wait budget as a duration.
func (a *ApprovalConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMinutes) * time.Minute
}

// SearchConfig bounds the searching phase.
type SearchConfig struct {
	// Endpoint is the HTML search endpoint queried by the web provider
	// (the query is appended as the q parameter).
	Endpoint string `yaml:"endpoint"`

	UserAgent string `yaml:"user_agent"`

	// MaxQueriesPerRound caps oracle-requested queries per search round.
	MaxQueriesPerRound int `yaml:"max_queries_per_round"`

	// MaxResultTokens caps each raw search result before summarization.
	MaxResultTokens int `yaml:"max_result_tokens"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-query fetch timeout as a duration.
func (s *SearchConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// WorkflowConfig bounds the workflow driver.
type WorkflowConfig struct {
	// MaxIterations caps phase executions per run so that reflection
	// loops (scenario B/D cycles) terminate.
	MaxIterations int `yaml:"max_iterations"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderAnthropic,
			Name:        "claude-sonnet-4-20250514",
			Host:        "http://localhost:11434",
			MaxTokens:   4096,
			Temperature: 0.3,
		},
		Sandbox: SandboxConfig{
			Interpreter:    "python3",
			EntryFile:      "main.py",
			TimeoutSeconds: 30,
			EnvPassthrough: []string{"PATH", "HOME", "LANG"},
		},
		Approval: ApprovalConfig{
			AutoApproveExecution: false,
			AutoApprovePlan:      true,
			AutoApproveSystem:    false,
			TimeoutMinutes:       5,
		},
		Search: SearchConfig{
			UserAgent:          "codeagent/1.0",
			MaxQueriesPerRound: 3,
			MaxResultTokens:    2000,
			TimeoutSeconds:     20,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 20,
		},
	}
}

// LoadConfig reads a YAML config file, layering it over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model name must not be empty")
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		return fmt.Errorf("sandbox timeout must be positive, got %d", c.Sandbox.TimeoutSeconds)
	}
	if c.Sandbox.Interpreter == "" {
		return fmt.Errorf("sandbox interpreter must not be empty")
	}
	if c.Sandbox.EntryFile == "" {
		return fmt.Errorf("sandbox entry file must not be empty")
	}
	if c.Approval.TimeoutMinutes <= 0 {
		return fmt.Errorf("approval timeout must be positive, got %d", c.Approval.TimeoutMinutes)
	}
	if c.Search.MaxQueriesPerRound <= 0 {
		return fmt.Errorf("search query cap must be positive, got %d", c.Search.MaxQueriesPerRound)
	}
	if c.Search.MaxResultTokens <= 0 {
		return fmt.Errorf("search result token cap must be positive, got %d", c.Search.MaxResultTokens)
	}
	if c.Workflow.MaxIterations <= 0 {
		return fmt.Errorf("workflow max iterations must be positive, got %d", c.Workflow.MaxIterations)
	}
	return nil
}
