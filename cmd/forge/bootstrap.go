package main

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/api"
	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/config"
	"github.com/ShayCichocki/forge/internal/control"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/logging"
	"github.com/ShayCichocki/forge/internal/orchestrator"
	"github.com/ShayCichocki/forge/internal/state"
)

// defaultOllamaModel is used when generative.model is unset for ollama.
const defaultOllamaModel = "llama3"

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *state.DB
	client  *api.Client
	signals *control.Signals
	forge   *orchestrator.Forge
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.Generative.Backend = flagBackend
	}
	if flagDBPath != "" {
		cfg.Storage.Path = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, cfg.Validate()
}

// newApp wires config, logger, store, ledger, generative client, agents and
// the forge. Commands that only read records pass generative=false and
// skip the backend entirely.
func newApp(ctx context.Context, generative bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	db, err := state.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	cwd, err := os.Getwd()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	signals, err := control.NewSignals(cwd)
	if err != nil {
		log.Warn("halt signals unavailable", zap.Error(err))
	} else {
		a.signals = signals
	}

	var backend api.Backend = &api.ScriptedBackend{Fallback: "{}"}
	clientCfg := api.ClientConfig{
		MaxTokens:   cfg.Generative.MaxTokens,
		CallTimeout: cfg.Generative.CallTimeout,
		SkipProbe:   !cfg.Generative.Probe || !generative,
	}
	if generative {
		if err := config.RequireCredentials(cfg); err != nil {
			a.Close()
			return nil, fmt.Errorf("%w (set ANTHROPIC_API_KEY or anthropic.api_key)", err)
		}
		backend, err = newBackend(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.client = api.NewClient(ctx, backend, clientCfg, log.Named("generative"))

	l := ledger.New(db, log)
	factory := &agent.Factory{
		Client:  a.client,
		Coercer: coerce.New(log),
		Events:  l,
		Models:  agent.NewModelSelector(cfg.Agents.Models),
		Logger:  log,
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(log),
		orchestrator.WithProposalDefaults(cfg.ProposalDefaults),
		orchestrator.WithCheckpoint(cfg.Provisioning.CheckpointProgress),
	}
	if a.signals != nil {
		opts = append(opts, orchestrator.WithSignals(a.signals))
	}
	a.forge, err = orchestrator.New(orchestrator.RequiredConfig{
		Store:   db,
		Ledger:  l,
		Runners: factory.Runners(),
	}, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newBackend builds the configured generative backend.
func newBackend(cfg *config.Config) (api.Backend, error) {
	switch cfg.Generative.Backend {
	case config.BackendOllama:
		model := cfg.Generative.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return api.NewOllamaBackend(api.OllamaConfig{ServerURL: cfg.Ollama.URL, Model: model})
	case config.BackendScripted:
		// Every agent gets an empty object, so each step degrades to its
		// defaults. Useful for exercising the pipelines offline.
		return &api.ScriptedBackend{Model: cfg.Generative.Model, Fallback: "{}"}, nil
	default:
		key, _ := config.GetAPIKey(cfg)
		return api.NewAnthropicBackend(api.AnthropicConfig{
			Model:         anthropic.Model(cfg.Generative.Model),
			APIKey:        key,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	}
}

// Close releases the database, the signal watcher and flushes the logger.
func (a *app) Close() {
	if a.signals != nil {
		a.signals.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.log != nil {
		a.log.Sync()
	}
}
