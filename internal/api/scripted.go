package api

import (
	"context"
	"sync"
)

// ScriptedBackend is a deterministic Backend for tests and offline runs.
// Replies are looked up by Request.Agent; probes (Agent == "") succeed
// unless ProbeErr is set.
type ScriptedBackend struct {
	Model string
	// Replies maps an agent id to its reply text.
	Replies map[string]string
	// Errors maps an agent id to the error its call returns.
	Errors map[string]error
	// ProbeErr fails every availability probe.
	ProbeErr error
	// UnavailableModels fails probes for the listed models.
	UnavailableModels map[string]bool
	// Fallback is returned for agents with no scripted reply.
	Fallback string

	mu    sync.Mutex
	calls []Request
}

// Name returns the provider name.
func (b *ScriptedBackend) Name() string {
	return "scripted"
}

// DefaultModel returns the scripted model name.
func (b *ScriptedBackend) DefaultModel() string {
	if b.Model == "" {
		return "scripted-model"
	}
	return b.Model
}

// Generate returns the scripted reply for req.Agent.
func (b *ScriptedBackend) Generate(ctx context.Context, req Request) (Response, error) {
	b.mu.Lock()
	b.calls = append(b.calls, req)
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	if req.Agent == "" {
		if b.ProbeErr != nil {
			return Response{}, b.ProbeErr
		}
		if b.UnavailableModels[req.Model] {
			return Response{}, ErrGeneration
		}
		return Response{Text: "ok", InputTokens: 1, OutputTokens: 1}, nil
	}

	if err, ok := b.Errors[req.Agent]; ok {
		return Response{}, err
	}
	if reply, ok := b.Replies[req.Agent]; ok {
		return Response{Text: reply, InputTokens: int64(len(req.Prompt) / 4), OutputTokens: int64(len(reply) / 4)}, nil
	}
	return Response{Text: b.Fallback}, nil
}

// Calls returns every request received, probes included.
func (b *ScriptedBackend) Calls() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.calls))
	copy(out, b.calls)
	return out
}

// AgentCalls returns the requests made by agent.
func (b *ScriptedBackend) AgentCalls(agent string) []Request {
	var out []Request
	for _, r := range b.Calls() {
		if r.Agent == agent {
			out = append(out, r)
		}
	}
	return out
}
