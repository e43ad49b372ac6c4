// Package config handles configuration loading and management for forge.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/forge/internal/orchestrator"
	"github.com/ShayCichocki/forge/internal/state"
)

// Backend names accepted in generative.backend.
const (
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"
	BackendScripted  = "scripted"
)

// Config holds all configuration for forge.
type Config struct {
	Generative       GenerativeConfig              `mapstructure:"generative"`
	Anthropic        AnthropicConfig               `mapstructure:"anthropic"`
	Ollama           OllamaConfig                  `mapstructure:"ollama"`
	Agents           AgentsConfig                  `mapstructure:"agents"`
	Storage          StorageConfig                 `mapstructure:"storage"`
	Logging          LoggingConfig                 `mapstructure:"logging"`
	Server           ServerConfig                  `mapstructure:"server"`
	Provisioning     ProvisioningConfig            `mapstructure:"provisioning"`
	ProposalDefaults orchestrator.ProposalDefaults `mapstructure:"proposal_defaults"`
}

// GenerativeConfig selects and tunes the generative service.
type GenerativeConfig struct {
	// Backend is anthropic, ollama or scripted.
	Backend string `mapstructure:"backend"`
	// Model overrides the backend's default model.
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// Probe checks the service once at startup.
	Probe bool `mapstructure:"probe"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OllamaConfig holds local model server settings.
type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

// AgentsConfig holds per-agent settings.
type AgentsConfig struct {
	// Models maps an agent id (ARA, AAD, ...) to a model name.
	Models map[string]string `mapstructure:"models"`
}

// StorageConfig holds the record store location.
type StorageConfig struct {
	// Path is the SQLite database file. Empty uses the user data directory.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProvisioningConfig holds post-approval pipeline settings.
type ProvisioningConfig struct {
	// CheckpointProgress is the project progress after provisioning.
	CheckpointProgress int `mapstructure:"checkpoint_progress"`
	// InterruptedAfter is how long a run may be idle before recover
	// treats it as interrupted.
	InterruptedAfter time.Duration `mapstructure:"interrupted_after"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, FORGE_*)
// 2. Project config (.forge.yaml in current directory or parent)
// 3. User config (~/.config/forge/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "FORGE_ANTHROPIC_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Generative.Backend {
	case BackendAnthropic, BackendOllama, BackendScripted:
	default:
		return fmt.Errorf("generative.backend: unknown backend %q", c.Generative.Backend)
	}
	if c.Generative.MaxTokens < 0 {
		return fmt.Errorf("generative.max_tokens must not be negative")
	}
	if p := c.Provisioning.CheckpointProgress; p < 0 || p > 100 {
		return fmt.Errorf("provisioning.checkpoint_progress must be within [0, 100], got %d", p)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: expected json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("generative.backend", cfg.Generative.Backend)
	v.Set("generative.model", cfg.Generative.Model)
	v.Set("generative.max_tokens", cfg.Generative.MaxTokens)
	v.Set("generative.call_timeout", cfg.Generative.CallTimeout.String())
	v.Set("generative.probe", cfg.Generative.Probe)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("ollama.url", cfg.Ollama.URL)
	v.Set("agents.models", cfg.Agents.Models)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("provisioning.checkpoint_progress", cfg.Provisioning.CheckpointProgress)
	v.Set("provisioning.interrupted_after", cfg.Provisioning.InterruptedAfter.String())

	pd := cfg.ProposalDefaults
	v.Set("proposal_defaults.title", pd.Title)
	v.Set("proposal_defaults.description", pd.Description)
	v.Set("proposal_defaults.problem_understanding", pd.ProblemUnderstanding)
	v.Set("proposal_defaults.solution_proposal", pd.SolutionProposal)
	v.Set("proposal_defaults.scope", pd.Scope)
	v.Set("proposal_defaults.technologies_suggested", pd.TechnologiesSuggested)
	v.Set("proposal_defaults.estimated_value", pd.EstimatedValue)
	v.Set("proposal_defaults.estimated_time", pd.EstimatedTime)
	v.Set("proposal_defaults.terms_conditions", pd.TermsConditions)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DatabasePath returns the configured database file, or the global one
// under the XDG data directory.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return expandEnv(c.Storage.Path)
	}
	return state.GlobalDBPath()
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("generative.backend", d.Generative.Backend)
	v.SetDefault("generative.model", "")
	v.SetDefault("generative.max_tokens", d.Generative.MaxTokens)
	v.SetDefault("generative.call_timeout", d.Generative.CallTimeout.String())
	v.SetDefault("generative.probe", d.Generative.Probe)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("ollama.url", d.Ollama.URL)
	v.SetDefault("agents.models", map[string]string{})
	v.SetDefault("storage.path", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("provisioning.checkpoint_progress", d.Provisioning.CheckpointProgress)
	v.SetDefault("provisioning.interrupted_after", d.Provisioning.InterruptedAfter.String())

	pd := d.ProposalDefaults
	v.SetDefault("proposal_defaults.title", pd.Title)
	v.SetDefault("proposal_defaults.description", pd.Description)
	v.SetDefault("proposal_defaults.problem_understanding", pd.ProblemUnderstanding)
	v.SetDefault("proposal_defaults.solution_proposal", pd.SolutionProposal)
	v.SetDefault("proposal_defaults.scope", pd.Scope)
	v.SetDefault("proposal_defaults.technologies_suggested", pd.TechnologiesSuggested)
	v.SetDefault("proposal_defaults.estimated_value", pd.EstimatedValue)
	v.SetDefault("proposal_defaults.estimated_time", pd.EstimatedTime)
	v.SetDefault("proposal_defaults.terms_conditions", pd.TermsConditions)
}

// getUserConfigDir returns the XDG config directory for forge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "forge")
	}
	return filepath.Join(home, ".config", "forge")
}

// findProjectConfig searches for .forge.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".forge.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Generative: GenerativeConfig{
			Backend:     BackendAnthropic,
			MaxTokens:   4096,
			CallTimeout: 2 * time.Minute,
			Probe:       true,
		},
		Ollama: OllamaConfig{
			URL: "http://localhost:11434",
		},
		Agents: AgentsConfig{
			Models: map[string]string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Provisioning: ProvisioningConfig{
			CheckpointProgress: orchestrator.DefaultCheckpoint,
			InterruptedAfter:   30 * time.Minute,
		},
		ProposalDefaults: orchestrator.DefaultProposalDefaults(),
	}
}
