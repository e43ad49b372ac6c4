package api

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// DefaultOllamaURL is used when no server URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaConfig contains configuration for the Ollama backend.
type OllamaConfig struct {
	ServerURL string
	Model     string
}

// OllamaBackend generates text with a local Ollama server through langchaingo.
type OllamaBackend struct {
	text  *ollama.LLM
	json  *ollama.LLM
	model string
}

// NewOllamaBackend creates an Ollama backend. Two clients are kept because
// Ollama's JSON format is fixed per client.
func NewOllamaBackend(cfg OllamaConfig) (*OllamaBackend, error) {
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}

	text, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	jsonLLM, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(cfg.Model), ollama.WithFormat("json"))
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	return &OllamaBackend{text: text, json: jsonLLM, model: cfg.Model}, nil
}

// Name returns the provider name.
func (b *OllamaBackend) Name() string {
	return "ollama"
}

// DefaultModel returns the configured model name.
func (b *OllamaBackend) DefaultModel() string {
	return b.model
}

// Generate sends one chat request to Ollama.
func (b *OllamaBackend) Generate(ctx context.Context, req Request) (Response, error) {
	client := b.text
	if req.JSON {
		client = b.json
	}

	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt))

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Response{}, fmt.Errorf("ollama call failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Content}, nil
}
