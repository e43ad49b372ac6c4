package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/coerce"
	"github.com/ShayCichocki/forge/internal/metrics"
)

// probePrompt is the lightweight request used to check availability.
const probePrompt = "Reply with the single word: ok"

// Prompt is the text an agent step sends.
type Prompt struct {
	// Agent identifies the caller in logs.
	Agent  string
	System string
	User   string
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// MaxTokens caps each response. Zero lets the backend decide.
	MaxTokens int
	// CallTimeout bounds each Invoke. Zero means no timeout.
	CallTimeout time.Duration
	// SkipProbe marks the service available without a probe call.
	SkipProbe bool
}

// Client is the single entry point for generative calls. Apart from the
// availability flag and the active model name it keeps no state between
// calls.
type Client struct {
	backend Backend
	cfg     ClientConfig
	log     *zap.Logger
	tracker *TokenTracker

	mu          sync.RWMutex
	available   bool
	probeErr    error
	activeModel string
}

// NewClient creates a client and probes the backend once. An unavailable
// backend is not an error here: every later Invoke fails fast instead.
func NewClient(ctx context.Context, backend Backend, cfg ClientConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		backend:     backend,
		cfg:         cfg,
		log:         log.With(zap.String("backend", backend.Name())),
		tracker:     NewTokenTracker(),
		activeModel: backend.DefaultModel(),
	}

	if cfg.SkipProbe {
		c.available = true
		return c
	}

	if err := c.probe(ctx, backend.DefaultModel()); err != nil {
		c.probeErr = err
		c.log.Warn("generative service unavailable", zap.Error(err))
		return c
	}
	c.available = true
	c.log.Info("generative service available", zap.String("model", c.activeModel))
	return c
}

// Available reports the result of the construction-time probe.
func (c *Client) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// ActiveModel returns the model used by the most recent call.
func (c *Client) ActiveModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeModel
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Invoke performs one generation round trip. With a non-empty schema the
// JSON field-set instruction is appended to the user prompt and the
// backend's JSON mode is requested. A model override that fails its probe
// is replaced by the default model.
func (c *Client) Invoke(ctx context.Context, p Prompt, schema coerce.Schema, modelOverride string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("%w: %v", ErrConnectivity, c.probeErr)
	}

	model := c.resolveModel(ctx, modelOverride)

	user := p.User
	jsonMode := false
	if !schema.IsZero() {
		user = user + "\n\n" + SchemaInstruction(schema)
		jsonMode = true
	}

	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.backend.Generate(ctx, Request{
		Agent:     p.Agent,
		Model:     model,
		System:    p.System,
		Prompt:    user,
		JSON:      jsonMode,
		MaxTokens: c.cfg.MaxTokens,
	})
	elapsed := time.Since(start)

	if err != nil {
		kind := classify(err)
		c.observe(kind, elapsed)
		c.log.Warn("generative call failed",
			zap.String("agent", p.Agent), zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("%w: %w", kind, err)
	}

	c.tracker.Add(resp.InputTokens, resp.OutputTokens)
	metrics.GenerativeTokens.WithLabelValues("input").Add(float64(resp.InputTokens))
	metrics.GenerativeTokens.WithLabelValues("output").Add(float64(resp.OutputTokens))

	if strings.TrimSpace(resp.Text) == "" {
		c.observe(ErrGeneration, elapsed)
		return "", fmt.Errorf("%w: empty response from %s", ErrGeneration, model)
	}

	c.observe(nil, elapsed)
	c.log.Debug("generative call",
		zap.String("agent", p.Agent),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed),
		zap.Int("chars", len(resp.Text)),
	)
	return resp.Text, nil
}

// resolveModel picks the model for one call and records it as active.
func (c *Client) resolveModel(ctx context.Context, override string) string {
	model := c.backend.DefaultModel()
	if override != "" && override != model {
		if err := c.probe(ctx, override); err != nil {
			c.log.Warn("model unavailable, falling back to default",
				zap.String("model", override), zap.String("default", model), zap.Error(err))
		} else {
			model = override
		}
	}

	c.mu.Lock()
	c.activeModel = model
	c.mu.Unlock()
	return model
}

func (c *Client) probe(ctx context.Context, model string) error {
	resp, err := c.backend.Generate(ctx, Request{Model: model, Prompt: probePrompt, MaxTokens: 8})
	if err != nil {
		return err
	}
	c.tracker.Add(resp.InputTokens, resp.OutputTokens)
	return nil
}

func (c *Client) observe(kind error, elapsed time.Duration) {
	result := "ok"
	switch {
	case errors.Is(kind, ErrConnectivity):
		result = "connectivity"
	case errors.Is(kind, ErrGeneration):
		result = "generation"
	}
	metrics.GenerativeCallDuration.WithLabelValues(c.backend.Name(), result).Observe(elapsed.Seconds())
}

// classify maps a backend error onto the two failure kinds. Transport
// failures and timeouts are connectivity problems; anything the service
// itself answered with is a generation problem.
func classify(err error) error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, ErrConnectivity):
		return ErrConnectivity
	case errors.Is(err, ErrGeneration):
		return ErrGeneration
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrConnectivity
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return ErrConnectivity
	default:
		return ErrGeneration
	}
}

// SchemaInstruction is appended to prompts that expect structured output.
func SchemaInstruction(schema coerce.Schema) string {
	return "Respond with a single JSON object that fills every field of the schema below. " +
		"Do not add commentary, markdown or code fences.\n\nSchema:\n" + schema.Describe()
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
