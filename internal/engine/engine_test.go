package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/engine"
	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/llm"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

type mockChatter struct {
	chatFn func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

func (m *mockChatter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return m.chatFn(ctx, req)
}

type mockScreen struct {
	checkFn func(ctx context.Context, text string) (*guardrails.GuardrailResult, error)
}

func (m *mockScreen) CheckInput(ctx context.Context, text string) (*guardrails.GuardrailResult, error) {
	return m.checkFn(ctx, text)
}

type mockScreener struct {
	screenFn func(ctx context.Context, id uuid.UUID, model, output, level string) error
}

func (m *mockScreener) ScreenOutput(ctx context.Context, id uuid.UUID, model, output, level string) error {
	return m.screenFn(ctx, id, model, output, level)
}

func echoChatter(t *testing.T) *mockChatter {
	return &mockChatter{chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		require.Len(t, req.Messages, 1)
		return &llm.ChatResponse{Provider: "openai", Model: req.Model, Content: "echo: " + req.Messages[0].Content}, nil
	}}
}

func neverChatter(t *testing.T) *mockChatter {
	return &mockChatter{chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
		t.Fatal("provider must not be called for a rejected prompt")
		return nil, nil
	}}
}

func realPipeline(t *testing.T) *guardrails.Pipeline {
	t.Helper()
	c, err := safety.NewDefault(nil)
	require.NoError(t, err)
	return guardrails.NewPipeline(c, config.SafetyConfig{
		Enabled:           true,
		BiasDetection:     true,
		ContentFiltering:  true,
		ToxicityThreshold: 0.8,
		BiasThreshold:     0.7,
		DefaultLevel:      "standard",
		MaxInputLength:    50000,
	})
}

func defaultConfig() engine.Config {
	return engine.Config{DefaultModel: "gpt-4", Temperature: 0.7, MaxTokens: 256, SafetyEnabled: true}
}

func TestDecorate(t *testing.T) {
	assert.Equal(t, "hi", engine.Decorate("hi", "", nil))
	assert.Equal(t, "[CONTEXT: docs]\nhi", engine.Decorate("hi", "docs", nil))
	assert.Equal(t,
		"[USER_PREFERENCES: length: short, tone: formal]\n[CONTEXT: docs]\nhi",
		engine.Decorate("hi", "docs", map[string]string{"tone": "formal", "length": "short"}),
	)
}

func TestProcessPromptSafe(t *testing.T) {
	var got llm.ChatRequest
	chat := &mockChatter{chatFn: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		got = req
		return &llm.ChatResponse{Provider: "openai", Model: req.Model, Content: "A warm, bright afternoon."}, nil
	}}
	e := engine.New(chat, realPipeline(t), defaultConfig())

	res, err := e.ProcessPrompt(context.Background(), engine.Request{
		Prompt:  "Describe a sunny day",
		Model:   "auto",
		Context: "weather blog",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, "Describe a sunny day", res.OriginalPrompt)
	assert.Equal(t, "[CONTEXT: weather blog]\nDescribe a sunny day", res.EnhancedPrompt)
	assert.Equal(t, "A warm, bright afternoon.", res.Output)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-4", res.Model)
	assert.InDelta(t, 1.0, res.SafetyScore, 1e-9)
	assert.Equal(t, 1.0, res.ConfidenceScore)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Equal(t, []llm.Message{{Role: "user", Content: res.EnhancedPrompt}}, got.Messages)
}

func TestProcessPromptQuickCheckRejection(t *testing.T) {
	e := engine.New(neverChatter(t), realPipeline(t), defaultConfig())

	res, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "I will kill the process"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrPromptRejected)
	assert.Contains(t, err.Error(), "deny_list")
}

func TestProcessPromptScreenFailureFailsClosed(t *testing.T) {
	screen := &mockScreen{checkFn: func(context.Context, string) (*guardrails.GuardrailResult, error) {
		return nil, errors.New("screen unreachable")
	}}
	e := engine.New(neverChatter(t), screen, defaultConfig())

	_, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "hello"})
	assert.ErrorIs(t, err, engine.ErrPromptRejected)
}

func TestProcessPromptPassesLevelAndSituation(t *testing.T) {
	sit := &safety.Situation{SensitiveContext: true}
	screen := &mockScreen{checkFn: func(ctx context.Context, text string) (*guardrails.GuardrailResult, error) {
		assert.Equal(t, "hello", text)
		assert.Equal(t, "strict", guardrails.SafetyLevelFromContext(ctx))
		assert.Same(t, sit, guardrails.SituationFromContext(ctx))
		return &guardrails.GuardrailResult{Allowed: true, Verdict: &safety.Verdict{Safe: true, SafetyScore: 0.93}}, nil
	}}
	e := engine.New(echoChatter(t), screen, defaultConfig())

	res, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "hello", SafetyLevel: "strict", Situation: sit})
	require.NoError(t, err)
	assert.InDelta(t, 0.93, res.SafetyScore, 1e-9)
}

func TestProcessPromptSafetyDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.SafetyEnabled = false
	e := engine.New(echoChatter(t), nil, cfg)

	res, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "I will kill the process", Model: "claude-3-haiku-20240307"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.SafetyScore)
	assert.Equal(t, "claude-3-haiku-20240307", res.Model)
}

func TestProcessPromptEmpty(t *testing.T) {
	e := engine.New(neverChatter(t), realPipeline(t), defaultConfig())
	_, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "   "})
	assert.ErrorIs(t, err, engine.ErrEmptyPrompt)
}

func TestProcessPromptProviderError(t *testing.T) {
	chat := &mockChatter{chatFn: func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, llm.ErrNoAdapter
	}}
	e := engine.New(chat, realPipeline(t), defaultConfig())

	_, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "hello", Model: "mistral-large"})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrNoAdapter)
	assert.NotErrorIs(t, err, engine.ErrPromptRejected)
}

func TestProcessPromptRendersVariablesBeforeScreening(t *testing.T) {
	e := engine.New(echoChatter(t), realPipeline(t), defaultConfig())

	res, err := e.ProcessPrompt(context.Background(), engine.Request{
		Prompt:    "Describe a {{weather}} day",
		Variables: map[string]string{"weather": "sunny"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Describe a sunny day", res.OriginalPrompt)

	_, err = engine.New(neverChatter(t), realPipeline(t), defaultConfig()).ProcessPrompt(context.Background(), engine.Request{
		Prompt:    "I will {{verb}} the process",
		Variables: map[string]string{"verb": "kill"},
	})
	assert.ErrorIs(t, err, engine.ErrPromptRejected)

	_, err = e.ProcessPrompt(context.Background(), engine.Request{
		Prompt:    "{{missing}}",
		Variables: map[string]string{"other": "x"},
	})
	assert.ErrorIs(t, err, engine.ErrMissingVariables)
}

func TestProcessPromptOutputScreener(t *testing.T) {
	var calls int
	screener := &mockScreener{screenFn: func(_ context.Context, id uuid.UUID, model, output, level string) error {
		calls++
		assert.NotEqual(t, uuid.Nil, id)
		assert.Equal(t, "gpt-4", model)
		assert.Equal(t, "echo: hello", output)
		assert.Equal(t, "permissive", level)
		return errors.New("redis down")
	}}
	e := engine.New(echoChatter(t), realPipeline(t), defaultConfig()).WithOutputScreener(screener)

	res, err := e.ProcessPrompt(context.Background(), engine.Request{Prompt: "hello", SafetyLevel: "permissive"})
	require.NoError(t, err, "screening failures must not fail the request")
	assert.Equal(t, "echo: hello", res.Output)
	assert.Equal(t, 1, calls)
}
