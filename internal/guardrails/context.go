package guardrails

import (
	"context"

	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

type contextKey string

const (
	levelKey     contextKey = "safety_level"
	situationKey contextKey = "situation"
)

// WithSafetyLevel sets the strictness tier the verdict guard applies.
func WithSafetyLevel(ctx context.Context, level string) context.Context {
	return context.WithValue(ctx, levelKey, level)
}

// SafetyLevelFromContext returns the level set by WithSafetyLevel, or "".
func SafetyLevelFromContext(ctx context.Context) string {
	l, _ := ctx.Value(levelKey).(string)
	return l
}

func WithSituation(ctx context.Context, s *safety.Situation) context.Context {
	return context.WithValue(ctx, situationKey, s)
}

func SituationFromContext(ctx context.Context) *safety.Situation {
	s, _ := ctx.Value(situationKey).(*safety.Situation)
	return s
}
