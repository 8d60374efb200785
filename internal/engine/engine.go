// Package engine forwards user prompts to an LLM provider after screening
// them with the safety guardrails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/llm"
	"github.com/nikhilbhutani/metaprompt/internal/metrics"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

var (
	// ErrPromptRejected wraps every refusal by the input guardrails.
	ErrPromptRejected = errors.New("prompt rejected")
	ErrEmptyPrompt    = errors.New("prompt is empty")
)

// Chatter sends a chat request to whichever provider serves the model.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// InputScreen decides whether a prompt may be forwarded.
type InputScreen interface {
	CheckInput(ctx context.Context, text string) (*guardrails.GuardrailResult, error)
}

// OutputScreener receives model outputs after a successful call.
type OutputScreener interface {
	ScreenOutput(ctx context.Context, resultID uuid.UUID, model, output, level string) error
}

type Config struct {
	DefaultModel  string
	Temperature   float64
	MaxTokens     int
	SafetyEnabled bool
}

type Request struct {
	Prompt      string            `json:"prompt"`
	Model       string            `json:"model,omitempty"`
	Context     string            `json:"context,omitempty"`
	Preferences map[string]string `json:"user_preferences,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	SafetyLevel string            `json:"safety_level,omitempty"`
	Situation   *safety.Situation `json:"situation,omitempty"`
}

// Result is the record of one processed prompt.
type Result struct {
	ID              uuid.UUID `json:"id"`
	OriginalPrompt  string    `json:"original_prompt"`
	EnhancedPrompt  string    `json:"enhanced_prompt"`
	Output          string    `json:"output"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	SafetyScore     float64   `json:"safety_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	LatencyMs       int64     `json:"latency_ms"`
}

type Engine struct {
	chat     Chatter
	screen   InputScreen
	screener OutputScreener
	cfg      Config
}

// New builds an engine. screen may be nil when cfg.SafetyEnabled is false.
func New(chat Chatter, screen InputScreen, cfg Config) *Engine {
	return &Engine{chat: chat, screen: screen, cfg: cfg}
}

// WithOutputScreener attaches s and returns e.
func (e *Engine) WithOutputScreener(s OutputScreener) *Engine {
	e.screener = s
	return e
}

// Decorate prepends the extra context and the user preferences to prompt. The
// preferences line comes first, keys sorted.
func Decorate(prompt, extra string, prefs map[string]string) string {
	if extra != "" {
		prompt = fmt.Sprintf("[CONTEXT: %s]\n%s", extra, prompt)
	}
	if len(prefs) > 0 {
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + ": " + prefs[k]
		}
		prompt = fmt.Sprintf("[USER_PREFERENCES: %s]\n%s", strings.Join(pairs, ", "), prompt)
	}
	return prompt
}

// ProcessPrompt renders req.Variables into the prompt, screens it and, if
// allowed, sends the decorated prompt to the model. A rejected prompt never
// reaches a provider.
func (e *Engine) ProcessPrompt(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if len(req.Variables) > 0 {
		rendered, err := Render(req.Prompt, req.Variables)
		if err != nil {
			return nil, err
		}
		req.Prompt = rendered
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	model := req.Model
	if model == "" || model == "auto" {
		model = e.cfg.DefaultModel
	}

	safetyScore := 1.0
	if e.cfg.SafetyEnabled {
		score, err := e.checkInput(ctx, req)
		if err != nil {
			metrics.RecordPrompt("none", "rejected")
			return nil, err
		}
		safetyScore = score
	}

	enhanced := Decorate(req.Prompt, req.Context, req.Preferences)
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: "user", Content: enhanced}},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		metrics.RecordPrompt("none", "error")
		return nil, fmt.Errorf("generate with %s: %w", model, err)
	}
	metrics.RecordPrompt(resp.Provider, "ok")

	result := &Result{
		ID:              uuid.New(),
		OriginalPrompt:  req.Prompt,
		EnhancedPrompt:  enhanced,
		Output:          resp.Content,
		Provider:        resp.Provider,
		Model:           model,
		SafetyScore:     safetyScore,
		ConfidenceScore: 1.0,
		LatencyMs:       time.Since(start).Milliseconds(),
	}

	if e.screener != nil {
		if err := e.screener.ScreenOutput(ctx, result.ID, model, result.Output, req.SafetyLevel); err != nil {
			slog.Warn("output screening not scheduled", "result_id", result.ID, "error", err)
		}
	}

	slog.Info("prompt processed",
		"result_id", result.ID,
		"provider", result.Provider,
		"model", model,
		"safety_score", safetyScore,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

func (e *Engine) checkInput(ctx context.Context, req Request) (float64, error) {
	if e.screen == nil {
		return 0, fmt.Errorf("%w: safety screen not configured", ErrPromptRejected)
	}

	ctx = guardrails.WithSafetyLevel(ctx, req.SafetyLevel)
	ctx = guardrails.WithSituation(ctx, req.Situation)

	res, err := e.screen.CheckInput(ctx, req.Prompt)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPromptRejected, err)
	}
	if !res.Allowed {
		slog.Warn("prompt rejected", "reason", res.Reason, "flags", res.Flags)
		return 0, fmt.Errorf("%w: %s", ErrPromptRejected, res.Reason)
	}

	if res.Verdict != nil {
		return res.Verdict.SafetyScore, nil
	}
	return 1.0, nil
}
