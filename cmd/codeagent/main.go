// Command codeagent runs one autonomous coding workflow: it plans,
// researches, writes, executes, and reflects on code for a single user
// request, then writes the generated files to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"codeagent/pkg/approval"
	"codeagent/pkg/config"
	"codeagent/pkg/hooks"
	"codeagent/pkg/logx"
	"codeagent/pkg/metrics"
	"codeagent/pkg/model"
	"codeagent/pkg/model/anthropic"
	"codeagent/pkg/model/ollama"
	"codeagent/pkg/model/openai"
	"codeagent/pkg/sandbox"
	"codeagent/pkg/search"
	"codeagent/pkg/utils"
	"codeagent/pkg/workflow"
)

const defaultSearchEndpoint = "https://html.duckduckgo.com/html/"

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config (defaults used when empty)")
		request     = flag.String("request", "", "the coding task to perform")
		outDir      = flag.String("out", "generated", "directory to write generated files to")
		autoApprove = flag.Bool("auto-approve", false, "approve all gated operations without prompting")
	)
	flag.Parse()

	if *request == "" && flag.NArg() > 0 {
		*request = strings.Join(flag.Args(), " ")
	}
	if *request == "" {
		fmt.Fprintln(os.Stderr, "usage: codeagent [-config file] [-out dir] -request \"task description\"")
		os.Exit(2)
	}

	if err := run(*configPath, *request, *outDir, *autoApprove); err != nil {
		fmt.Fprintf(os.Stderr, "codeagent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, request, outDir string, autoApprove bool) error {
	logger := logx.NewLogger("codeagent")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if autoApprove {
		cfg.Approval.AutoApproveExecution = true
		cfg.Approval.AutoApprovePlan = true
		cfg.Approval.AutoApproveSystem = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	registry := hooks.NewRegistry(recorder)
	registerGates(registry, cfg, recorder)

	client, err := buildClient(cfg, logger, recorder, registry)
	if err != nil {
		return err
	}

	sb, err := sandbox.NewSandbox(cfg.Sandbox, recorder)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sb.Close(); closeErr != nil {
			logger.Warn("sandbox cleanup failed: %v", closeErr)
		}
	}()

	tokens, err := utils.NewTokenCounter()
	if err != nil {
		logger.Warn("tokenizer unavailable, using character estimates: %v", err)
	}

	endpoint := cfg.Search.Endpoint
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}

	deps := &workflow.Deps{
		Client:  client,
		Search:  search.NewWebProvider(endpoint, cfg.Search.UserAgent, cfg.Search.Timeout()),
		Sandbox: sb,
		Hooks:   registry,
		Parser:  workflow.NewTwoTierParser(),
		Config:  cfg,
		Tokens:  tokens,
		Logger:  logx.NewLogger("workflow"),
	}

	state := workflow.NewState(request)
	logger.Info("starting workflow %s", state.ID)

	if err := workflow.NewDriver(deps, recorder).Run(ctx, state); err != nil {
		return err
	}

	return writeOutputs(state, outDir, logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// buildClient creates the configured provider adapter wrapped in the
// hook-event, metrics, and logging middleware.
func buildClient(cfg *config.Config, logger *logx.Logger, recorder *metrics.Recorder, registry *hooks.Registry) (model.LLMClient, error) {
	secrets := loadSecrets(logger)

	var base model.LLMClient
	switch cfg.Model.Provider {
	case config.ProviderAnthropic:
		key, err := config.GetSecret(secrets, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		base = anthropic.NewClient(key, cfg.Model.Name)
	case config.ProviderOpenAI:
		key, err := config.GetSecret(secrets, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		base = openai.NewClient(key, cfg.Model.Name)
	case config.ProviderOllama:
		base = ollama.NewClient(cfg.Model.Host, cfg.Model.Name)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}

	return model.Chain(base,
		model.WithHookEvents(registry),
		model.WithMetrics(recorder, cfg.Model.Provider),
		model.WithLogging(logx.NewLogger("oracle")),
	), nil
}

// loadSecrets decrypts the project secrets file when present and a
// passphrase is supplied; otherwise API keys come from the environment.
func loadSecrets(logger *logx.Logger) map[string]string {
	password := os.Getenv("CODEAGENT_SECRETS_PASSWORD")
	if password == "" || !config.SecretsFileExists(".") {
		return nil
	}
	secrets, err := config.DecryptSecretsFile(".", password)
	if err != nil {
		logger.Warn("failed to decrypt secrets file, falling back to environment: %v", err)
		return nil
	}
	return secrets
}

// registerGates wires the three approval gates into the hook registry.
// The gates share one approval manager backed by the interactive
// console channel.
func registerGates(registry *hooks.Registry, cfg *config.Config, recorder *metrics.Recorder) {
	manager := approval.NewManager(approval.NewConsoleChannel(), cfg.Approval.Timeout(), recorder)

	registry.Register(hooks.BeforeToolCall, "execution-gate", 100,
		approval.NewExecutionGate(manager, cfg.Approval.AutoApproveExecution))
	registry.Register(hooks.BeforeToolCall, "system-gate", 90,
		approval.NewSystemGate(manager, cfg.Approval.AutoApproveSystem))
	registry.Register(hooks.AfterAgent, "plan-gate", 100,
		approval.NewPlanGate(manager, cfg.Approval.AutoApprovePlan))
}

// writeOutputs persists the generated files and prints a run summary.
func writeOutputs(state *workflow.State, outDir string, logger *logx.Logger) error {
	if len(state.CodeFiles) == 0 {
		logger.Warn("workflow finished without generating code")
		return nil
	}

	for path, content := range state.CodeFiles {
		full := filepath.Join(outDir, filepath.Clean(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", full, err)
		}
		logger.Info("wrote %s", full)
	}

	fmt.Printf("\nWorkflow %s finished in %d iteration(s).\n", state.ID, state.Iterations)
	fmt.Printf("Entry point: %s\n", filepath.Join(outDir, state.CurrentFile))
	if last := state.LastExecution; last != nil {
		fmt.Printf("Last execution: return code %d in %v\n", last.ReturnCode, last.ExecutionTime)
		if last.Stdout != "" {
			fmt.Printf("\n%s", last.Stdout)
		}
	}
	return nil
}
