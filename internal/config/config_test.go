package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/orchestrator"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Generative.Backend != BackendAnthropic {
		t.Errorf("expected default backend %q, got %q", BackendAnthropic, cfg.Generative.Backend)
	}

	if cfg.Generative.MaxTokens != 4096 {
		t.Errorf("expected max tokens 4096, got %d", cfg.Generative.MaxTokens)
	}

	if cfg.Generative.CallTimeout != 2*time.Minute {
		t.Errorf("expected call timeout 2m, got %v", cfg.Generative.CallTimeout)
	}

	if !cfg.Generative.Probe {
		t.Error("expected generative.probe to be true")
	}

	if cfg.Provisioning.CheckpointProgress != orchestrator.DefaultCheckpoint {
		t.Errorf("expected checkpoint %d, got %d", orchestrator.DefaultCheckpoint, cfg.Provisioning.CheckpointProgress)
	}

	if cfg.ProposalDefaults.SolutionProposal != agent.DefaultSolution {
		t.Errorf("expected default solution %q, got %q", agent.DefaultSolution, cfg.ProposalDefaults.SolutionProposal)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
generative:
  backend: ollama
  model: llama3
  max_tokens: 2048
  call_timeout: 45s
  probe: false
anthropic:
  api_key: test-key
ollama:
  url: http://models.internal:11434
agents:
  models:
    ARA: claude-haiku
    adex: claude-sonnet
storage:
  path: /var/lib/forge/forge.db
logging:
  level: debug
  format: json
server:
  addr: 127.0.0.1:9090
provisioning:
  checkpoint_progress: 20
  interrupted_after: 1h
proposal_defaults:
  title: Draft
  estimated_value: 1500
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Generative.Backend != BackendOllama {
		t.Errorf("expected backend ollama, got %q", cfg.Generative.Backend)
	}
	if cfg.Generative.Model != "llama3" {
		t.Errorf("expected model llama3, got %q", cfg.Generative.Model)
	}
	if cfg.Generative.CallTimeout != 45*time.Second {
		t.Errorf("expected call timeout 45s, got %v", cfg.Generative.CallTimeout)
	}
	if cfg.Generative.Probe {
		t.Error("expected generative.probe to be false")
	}
	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Ollama.URL != "http://models.internal:11434" {
		t.Errorf("unexpected ollama url %q", cfg.Ollama.URL)
	}
	if len(cfg.Agents.Models) != 2 {
		t.Errorf("expected 2 agent models, got %v", cfg.Agents.Models)
	}
	if cfg.DatabasePath() != "/var/lib/forge/forge.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("unexpected server addr %q", cfg.Server.Addr)
	}
	if cfg.Provisioning.CheckpointProgress != 20 {
		t.Errorf("expected checkpoint 20, got %d", cfg.Provisioning.CheckpointProgress)
	}
	if cfg.Provisioning.InterruptedAfter != time.Hour {
		t.Errorf("expected interrupted_after 1h, got %v", cfg.Provisioning.InterruptedAfter)
	}

	if cfg.ProposalDefaults.Title != "Draft" {
		t.Errorf("expected default title 'Draft', got %q", cfg.ProposalDefaults.Title)
	}
	if cfg.ProposalDefaults.EstimatedValue != 1500 {
		t.Errorf("expected default value 1500, got %v", cfg.ProposalDefaults.EstimatedValue)
	}
	// Unset defaults keep the built-in text.
	if cfg.ProposalDefaults.Scope != orchestrator.DefaultProposalDefaults().Scope {
		t.Errorf("expected built-in scope, got %q", cfg.ProposalDefaults.Scope)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("FORGE_LOGGING_LEVEL", "warn")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("expected env api key, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected env logging level 'warn', got %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"scripted backend", func(c *Config) { c.Generative.Backend = BackendScripted }, false},
		{"unknown backend", func(c *Config) { c.Generative.Backend = "openai" }, true},
		{"negative max tokens", func(c *Config) { c.Generative.MaxTokens = -1 }, true},
		{"checkpoint above 100", func(c *Config) { c.Provisioning.CheckpointProgress = 101 }, true},
		{"checkpoint below 0", func(c *Config) { c.Provisioning.CheckpointProgress = -5 }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("generative:\n  backend: openai\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromPath(configPath); err == nil {
		t.Error("expected an error for an unknown backend")
	}
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/forge"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Generative.Backend = BackendScripted
	cfg.Server.Addr = ":9999"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Generative.Backend != BackendScripted {
		t.Errorf("expected scripted backend, got %q", loaded.Generative.Backend)
	}
	if loaded.Server.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %q", loaded.Server.Addr)
	}
	if loaded.Generative.CallTimeout != cfg.Generative.CallTimeout {
		t.Errorf("expected call timeout %v, got %v", cfg.Generative.CallTimeout, loaded.Generative.CallTimeout)
	}
}
