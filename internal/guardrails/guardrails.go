package guardrails

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

// GuardrailResult holds the outcome of a safety check.
type GuardrailResult struct {
	Allowed bool               `json:"allowed"`
	Flags   []string           `json:"flags,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Verdict *safety.Verdict    `json:"verdict,omitempty"`
}

// Guardrail is a check that can be applied to input or output.
type Guardrail interface {
	Check(ctx context.Context, text string) (*GuardrailResult, error)
	Name() string
}

// Pipeline chains multiple guardrails together. The first guardrail that
// blocks stops the chain.
type Pipeline struct {
	inputGuardrails  []Guardrail
	outputGuardrails []Guardrail
}

func NewEmptyPipeline() *Pipeline {
	return &Pipeline{}
}

// NewPipeline wires the configured checks around checker. Input runs the
// length guard, the deny list (when content filtering is on) and the full
// verdict; output runs the verdict only.
func NewPipeline(checker *safety.Checker, cfg config.SafetyConfig) *Pipeline {
	p := NewEmptyPipeline()

	if cfg.MaxInputLength > 0 {
		p.AddInputGuardrail(NewInputLengthGuard(cfg.MaxInputLength))
	}
	if cfg.ContentFiltering {
		p.AddInputGuardrail(NewDenyListGuard(checker))
	}
	verdict := NewVerdictGuard(checker, cfg)
	p.AddInputGuardrail(verdict)
	p.AddOutputGuardrail(verdict)

	return p
}

func (p *Pipeline) AddInputGuardrail(g Guardrail) {
	p.inputGuardrails = append(p.inputGuardrails, g)
}

func (p *Pipeline) AddOutputGuardrail(g Guardrail) {
	p.outputGuardrails = append(p.outputGuardrails, g)
}

// CheckInput runs all input guardrails against the text.
func (p *Pipeline) CheckInput(ctx context.Context, text string) (*GuardrailResult, error) {
	return p.runChecks(ctx, text, p.inputGuardrails)
}

// CheckOutput runs all output guardrails against the text.
func (p *Pipeline) CheckOutput(ctx context.Context, text string) (*GuardrailResult, error) {
	return p.runChecks(ctx, text, p.outputGuardrails)
}

func (p *Pipeline) runChecks(ctx context.Context, text string, guards []Guardrail) (*GuardrailResult, error) {
	combined := &GuardrailResult{
		Allowed: true,
		Scores:  make(map[string]float64),
	}

	for _, g := range guards {
		result, err := g.Check(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		combined.Flags = append(combined.Flags, result.Flags...)
		for k, v := range result.Scores {
			combined.Scores[k] = v
		}
		if result.Verdict != nil {
			combined.Verdict = result.Verdict
		}
		if !result.Allowed {
			combined.Allowed = false
			combined.Reason = fmt.Sprintf("blocked by %s: %s", g.Name(), result.Reason)
			break
		}
	}

	return combined, nil
}

// InputLengthGuard rejects inputs that are too long.
type InputLengthGuard struct {
	maxLength int
}

func NewInputLengthGuard(maxLen int) *InputLengthGuard {
	return &InputLengthGuard{maxLength: maxLen}
}

func (g *InputLengthGuard) Name() string { return "input_length" }

func (g *InputLengthGuard) Check(_ context.Context, text string) (*GuardrailResult, error) {
	if utf8.RuneCountInString(text) > g.maxLength {
		return &GuardrailResult{
			Allowed: false,
			Reason:  fmt.Sprintf("input exceeds %d characters", g.maxLength),
			Flags:   []string{"input_too_long"},
		}, nil
	}
	return &GuardrailResult{Allowed: true}, nil
}
