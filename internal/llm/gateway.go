package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/pkg/tokenizer"
)

type gateway struct {
	providers    map[string]Provider
	defaultModel string
}

// NewGateway registers every provider whose credentials are configured.
// Providers without credentials are skipped; routing to them later fails.
func NewGateway(cfg config.LLMConfig) Gateway {
	var providers []Provider

	if p, err := NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Timeout); err == nil {
		providers = append(providers, p)
	} else {
		slog.Debug("provider disabled", "provider", "openai", "error", err)
	}
	if p, err := NewAnthropicProvider(cfg.AnthropicKey, cfg.Timeout); err == nil {
		providers = append(providers, p)
	} else {
		slog.Debug("provider disabled", "provider", "anthropic", "error", err)
	}
	if p, err := NewGeminiProvider(cfg.GeminiKey, cfg.GeminiBaseURL, cfg.Timeout); err == nil {
		providers = append(providers, p)
	} else {
		slog.Debug("provider disabled", "provider", "gemini", "error", err)
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL, cfg.Timeout))
	}

	return NewGatewayWithProviders(cfg.DefaultModel, providers...)
}

// NewGatewayWithProviders builds a gateway from already constructed providers,
// keyed by Name().
func NewGatewayWithProviders(defaultModel string, providers ...Provider) Gateway {
	g := &gateway{
		providers:    make(map[string]Provider, len(providers)),
		defaultModel: defaultModel,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

// providerFor maps a model name onto the provider that serves it.
func providerFor(model string) (string, bool) {
	switch {
	case strings.HasPrefix(model, "models/gemini"), strings.HasPrefix(model, "models/gemma"):
		return "gemini", true
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "text-"):
		return "openai", true
	case strings.HasPrefix(model, "claude"):
		return "anthropic", true
	case strings.HasPrefix(model, ollamaPrefix):
		return "ollama", true
	}
	return "", false
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Route(model string) (Provider, error) {
	name, ok := providerFor(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoAdapter, model)
	}
	return g.Provider(name)
}

// Chat forwards req to the provider for req.Model, or the default model when
// unset. There is no retry or fallback. Token usage is estimated when the
// provider reports none.
func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = g.defaultModel
	}
	p, err := g.Route(req.Model)
	if err != nil {
		return nil, err
	}

	slog.Debug("dispatching chat", "provider", p.Name(), "model", req.Model)
	resp, err := p.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.TotalTokens == 0 {
		estimateUsage(req, resp)
	}
	return resp, nil
}

func estimateUsage(req ChatRequest, resp *ChatResponse) {
	contents := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		contents[i] = m.Content
	}
	resp.InputTokens = tokenizer.CountMessages(contents...)
	resp.OutputTokens = tokenizer.CountTokens(resp.Content)
	resp.TotalTokens = resp.InputTokens + resp.OutputTokens
	resp.CostUSD = CalculateCost(req.Model, resp.InputTokens, resp.OutputTokens)
}

func (g *gateway) ListModels() []ModelInfo {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []ModelInfo
	for _, name := range names {
		for _, m := range g.providers[name].Models() {
			models = append(models, ModelInfo{Provider: name, Model: m})
		}
	}
	return models
}
