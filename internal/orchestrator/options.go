package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/agent"
	"github.com/ShayCichocki/forge/internal/control"
	"github.com/ShayCichocki/forge/internal/ledger"
	"github.com/ShayCichocki/forge/internal/state"
)

// DefaultCheckpoint is the project progress set after provisioning succeeds.
const DefaultCheckpoint = 10

// RequiredConfig contains the minimal required configuration for a Forge.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Store persists proposals, projects and artifacts.
	Store state.StateStore
	// Ledger records every transition.
	Ledger *ledger.Ledger
	// Runners holds one step per agent id; see agent.Factory.Runners.
	Runners map[string]agent.Runner
}

// Option configures a Forge. Use With* functions to create Options.
type Option func(*forgeOptions)

type forgeOptions struct {
	logger     *zap.Logger
	defaults   ProposalDefaults
	checkpoint int
	signals    *control.Signals
	now        func() time.Time
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *zap.Logger) Option {
	return func(o *forgeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProposalDefaults sets the values used when assembly aborts. Blank
// fields keep the built-in defaults.
func WithProposalDefaults(d ProposalDefaults) Option {
	return func(o *forgeOptions) { o.defaults = d }
}

// WithCheckpoint sets the progress recorded after successful provisioning.
func WithCheckpoint(progress int) Option {
	return func(o *forgeOptions) { o.checkpoint = progress }
}

// WithSignals lets a halt signal cancel running pipelines between steps.
func WithSignals(s *control.Signals) Option {
	return func(o *forgeOptions) { o.signals = s }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *forgeOptions) { o.now = now }
}

func defaultOptions() forgeOptions {
	return forgeOptions{
		logger:     zap.NewNop(),
		defaults:   DefaultProposalDefaults(),
		checkpoint: DefaultCheckpoint,
		now:        time.Now,
	}
}
