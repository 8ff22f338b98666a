package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Search.MaxQueriesPerRound)
	assert.Equal(t, "python3", cfg.Sandbox.Interpreter)
	assert.False(t, cfg.Approval.AutoApproveExecution)
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  provider: openai
  name: gpt-4o
sandbox:
  timeout_seconds: 10
approval:
  auto_approve_execution: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, 10, cfg.Sandbox.TimeoutSeconds)
	assert.True(t, cfg.Approval.AutoApproveExecution)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Search.MaxQueriesPerRound)
	assert.Equal(t, "main.py", cfg.Sandbox.EntryFile)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: carrier-pigeon\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sandbox timeout", func(c *Config) { c.Sandbox.TimeoutSeconds = 0 }},
		{"empty interpreter", func(c *Config) { c.Sandbox.Interpreter = "" }},
		{"empty entry file", func(c *Config) { c.Sandbox.EntryFile = "" }},
		{"zero approval timeout", func(c *Config) { c.Approval.TimeoutMinutes = 0 }},
		{"zero query cap", func(c *Config) { c.Search.MaxQueriesPerRound = 0 }},
		{"zero result cap", func(c *Config) { c.Search.MaxResultTokens = 0 }},
		{"zero iterations", func(c *Config) { c.Workflow.MaxIterations = 0 }},
		{"empty model name", func(c *Config) { c.Model.Name = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		EnvAnthropicAPIKey: "sk-ant-test",
		EnvOpenAIAPIKey:    "sk-test",
	}

	require.NoError(t, EncryptSecretsFile(dir, "hunter2", secrets))
	assert.True(t, SecretsFileExists(dir))

	got, err := DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)

	_, err = DecryptSecretsFile(dir, "wrong-password")
	assert.Error(t, err)
}

func TestGetSecretPrecedence(t *testing.T) {
	t.Setenv("CODEAGENT_TEST_SECRET", "from-env")

	// File value wins over environment.
	v, err := GetSecret(map[string]string{"CODEAGENT_TEST_SECRET": "from-file"}, "CODEAGENT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	// Falls back to environment.
	v, err = GetSecret(nil, "CODEAGENT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = GetSecret(nil, "CODEAGENT_TEST_MISSING")
	assert.Error(t, err)
}
