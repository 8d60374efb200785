package guardrails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/metrics"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

// PromptChecker produces a full safety verdict.
type PromptChecker interface {
	CheckPrompt(ctx context.Context, prompt, level string, situation *safety.Situation) safety.Verdict
}

// VerdictGuard runs the full safety check. Besides the verdict itself it
// enforces the configured bias and toxicity ceilings.
type VerdictGuard struct {
	checker           PromptChecker
	defaultLevel      string
	biasDetection     bool
	biasThreshold     float64
	toxicityThreshold float64
}

func NewVerdictGuard(checker PromptChecker, cfg config.SafetyConfig) *VerdictGuard {
	return &VerdictGuard{
		checker:           checker,
		defaultLevel:      cfg.DefaultLevel,
		biasDetection:     cfg.BiasDetection,
		biasThreshold:     cfg.BiasThreshold,
		toxicityThreshold: cfg.ToxicityThreshold,
	}
}

func (g *VerdictGuard) Name() string { return "safety_verdict" }

func (g *VerdictGuard) Check(ctx context.Context, text string) (*GuardrailResult, error) {
	level := SafetyLevelFromContext(ctx)
	if level == "" {
		level = g.defaultLevel
	}

	start := time.Now()
	v := g.checker.CheckPrompt(ctx, text, level, SituationFromContext(ctx))
	metrics.RecordSafetyCheck(string(v.RiskLevel), time.Since(start))

	result := &GuardrailResult{
		Allowed: true,
		Scores: map[string]float64{
			"safety_score":   v.SafetyScore,
			"bias_score":     v.BiasScore,
			"toxicity_score": v.ToxicityScore,
		},
		Verdict: &v,
	}

	var reasons []string
	if !v.Safe {
		result.Flags = append(result.Flags, "unsafe")
		reason := v.Reason
		if reason == "" {
			reason = "safety threshold not met"
		}
		reasons = append(reasons, fmt.Sprintf("%s (score %.2f, risk %s)", reason, v.SafetyScore, v.RiskLevel))
	}
	if g.biasDetection && v.BiasScore > g.biasThreshold {
		result.Flags = append(result.Flags, "bias_over_threshold")
		reasons = append(reasons, fmt.Sprintf("bias score %.2f exceeds %.2f", v.BiasScore, g.biasThreshold))
	}
	if v.ToxicityScore > g.toxicityThreshold {
		result.Flags = append(result.Flags, "toxicity_over_threshold")
		reasons = append(reasons, fmt.Sprintf("toxicity score %.2f exceeds %.2f", v.ToxicityScore, g.toxicityThreshold))
	}

	if len(reasons) > 0 {
		result.Allowed = false
		result.Reason = strings.Join(reasons, "; ")
	}
	return result, nil
}
