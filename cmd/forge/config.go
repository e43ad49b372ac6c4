package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify forge configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Per-agent models are set with agents.models.<AGENT>, e.g.
  forge config agents.models.ADEX claude-opus-4-20250514

Configuration is stored at ~/.config/forge/config.yaml
Project-specific overrides can be placed in .forge.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists every scalar key in display order.
var configKeys = []string{
	"generative.backend",
	"generative.model",
	"generative.max_tokens",
	"generative.call_timeout",
	"generative.probe",
	"anthropic.api_key",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"ollama.url",
	"storage.path",
	"logging.level",
	"logging.format",
	"server.addr",
	"provisioning.checkpoint_progress",
	"provisioning.interrupted_after",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("credentials: %s\n", config.GetAPIKeySource(cfg))

	selector := agent.NewModelSelector(cfg.Agents.Models)
	for _, id := range selector.Assignments() {
		fmt.Printf("agents.models.%s: %s\n", id, selector.SelectModel(id))
	}
	fmt.Printf("database: %s\n", cfg.DatabasePath())
}

// setConfigKey sets a configuration value, validates and saves the config.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	shown := value
	if strings.EqualFold(key, "anthropic.api_key") {
		shown = config.MaskAPIKey(value)
	}
	fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, shown)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	key = strings.ToLower(key)
	if id, ok := strings.CutPrefix(key, "agents.models."); ok {
		model := agent.NewModelSelector(cfg.Agents.Models).SelectModel(id)
		if model == "" {
			return "(default)", nil
		}
		return model, nil
	}

	switch key {
	case "generative.backend":
		return cfg.Generative.Backend, nil
	case "generative.model":
		return cfg.Generative.Model, nil
	case "generative.max_tokens":
		return strconv.Itoa(cfg.Generative.MaxTokens), nil
	case "generative.call_timeout":
		return cfg.Generative.CallTimeout.String(), nil
	case "generative.probe":
		return strconv.FormatBool(cfg.Generative.Probe), nil
	case "anthropic.api_key":
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return "(not set)", nil
		}
		return config.MaskAPIKey(key), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "ollama.url":
		return cfg.Ollama.URL, nil
	case "storage.path":
		return cfg.Storage.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "provisioning.checkpoint_progress":
		return strconv.Itoa(cfg.Provisioning.CheckpointProgress), nil
	case "provisioning.interrupted_after":
		return cfg.Provisioning.InterruptedAfter.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	if id, ok := strings.CutPrefix(key, "agents.models."); ok {
		if _, known := agent.Lookup(strings.ToUpper(id)); !known {
			return fmt.Errorf("unknown agent: %s", strings.ToUpper(id))
		}
		if cfg.Agents.Models == nil {
			cfg.Agents.Models = map[string]string{}
		}
		cfg.Agents.Models[id] = value
		return nil
	}

	switch key {
	case "generative.backend":
		cfg.Generative.Backend = value
	case "generative.model":
		cfg.Generative.Model = value
	case "generative.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Generative.MaxTokens = n
	case "generative.call_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for call_timeout: %w", err)
		}
		cfg.Generative.CallTimeout = d
	case "generative.probe":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for generative.probe: %w", err)
		}
		cfg.Generative.Probe = b
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "ollama.url":
		cfg.Ollama.URL = value
	case "storage.path":
		cfg.Storage.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "server.addr":
		cfg.Server.Addr = value
	case "provisioning.checkpoint_progress":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for checkpoint_progress: %w", err)
		}
		cfg.Provisioning.CheckpointProgress = n
	case "provisioning.interrupted_after":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for interrupted_after: %w", err)
		}
		cfg.Provisioning.InterruptedAfter = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
