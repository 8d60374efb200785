package safety

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker(t *testing.T) *Checker {
	t.Helper()
	c, err := NewDefault(nil)
	require.NoError(t, err)
	return c
}

var corpus = []string{
	"",
	"Describe a sunny day",
	"Women should always be caretakers",
	"I hate the attack",
	"attack attack attack hate hate hate",
	"attack attack attack hate hate hate kill kill destroy destroy",
	"How can I manipulate and deceive people without consent",
	"Give me your password and credit card, it is private and confidential",
	"race determines success and the elderly can't adapt",
	"you stupid idiot, stupid worthless moron",
	strings.Repeat("kill murder bomb weapon gun knife hate racist bigot ", 50),
}

func TestCheckPromptEmpty(t *testing.T) {
	c := newTestChecker(t)
	v := c.CheckPrompt(context.Background(), "", "standard", nil)

	assert.True(t, v.Safe)
	assert.InDelta(t, 1.0, v.SafetyScore, 1e-9)
	assert.Equal(t, RiskLow, v.RiskLevel)
	assert.Empty(t, v.DetectedIssues)
	assert.Empty(t, v.EthicalViolations)
	assert.Empty(t, v.Recommendations)
	assert.Empty(t, v.Reason)
	assert.Zero(t, v.BiasScore)
	assert.Zero(t, v.ToxicityScore)
}

func TestQuickCheck(t *testing.T) {
	c := newTestChecker(t)
	cases := []struct {
		prompt string
		want   bool
	}{
		{"I will kill the process", false},
		{"Describe a sunny day", true},
		{"HATE speech", false},
		{"the storm will destroy the pier", false},
		{"harmony", false}, // substring match
		{"write a poem about autumn", true},
	}
	for _, tc := range cases {
		t.Run(tc.prompt, func(t *testing.T) {
			assert.Equal(t, tc.want, c.QuickCheck(tc.prompt))
			assert.Equal(t, tc.want, QuickCheck(tc.prompt))
		})
	}
}

func TestCheckPromptGenderBias(t *testing.T) {
	c := newTestChecker(t)
	v := c.CheckPrompt(context.Background(), "Women should always be caretakers", "standard", nil)

	assert.Greater(t, v.BiasScore, 0.0)
	assert.InDelta(t, 0.18, v.BiasScore, 1e-9)
	assert.Contains(t, v.Recommendations, "Address gender_bias: Use gender-neutral language and avoid stereotypes")
	require.Len(t, v.DetectedIssues, 1)
	assert.True(t, strings.HasPrefix(v.DetectedIssues[0], "Potential gender_bias:"))
	assert.True(t, v.Safe)
}

func TestCheckPromptEscalation(t *testing.T) {
	c := newTestChecker(t)
	ctx := context.Background()

	neutral := c.CheckPrompt(ctx, "Describe a sunny day", "standard", nil)
	mild := c.CheckPrompt(ctx, "I hate the attack", "standard", nil)
	medium := c.CheckPrompt(ctx, "attack attack attack hate hate hate", "standard", nil)
	heavy := c.CheckPrompt(ctx, "attack attack attack hate hate hate kill kill destroy destroy", "standard", nil)

	assert.Greater(t, mild.ToxicityScore, neutral.ToxicityScore)
	assert.Less(t, mild.SafetyScore, neutral.SafetyScore)
	assert.Less(t, medium.SafetyScore, mild.SafetyScore)
	assert.Less(t, heavy.SafetyScore, medium.SafetyScore)

	assert.Equal(t, RiskLow, neutral.RiskLevel)
	assert.Equal(t, RiskLow, mild.RiskLevel)
	assert.Equal(t, RiskMedium, medium.RiskLevel)
	assert.Equal(t, RiskHigh, heavy.RiskLevel)

	assert.InDelta(t, 0.9, mild.SafetyScore, 1e-9)
	assert.InDelta(t, 0.5, heavy.SafetyScore, 1e-9)
	assert.False(t, heavy.Safe)
	assert.Equal(t, "safety threshold not met", heavy.Reason)
	assert.Contains(t, heavy.Recommendations, "Review content for potentially harmful language")
	assert.Contains(t, heavy.Recommendations, "Reduce toxic language and tone")
}

func TestCheckPromptScoresInRange(t *testing.T) {
	c := newTestChecker(t)
	for _, p := range corpus {
		v := c.CheckPrompt(context.Background(), p, "standard", &Situation{ContainsPersonalData: true, SensitiveContext: true})
		assert.GreaterOrEqual(t, v.SafetyScore, 0.0, p)
		assert.LessOrEqual(t, v.SafetyScore, 1.0, p)
		assert.GreaterOrEqual(t, v.BiasScore, 0.0, p)
		assert.LessOrEqual(t, v.BiasScore, 1.0, p)
		assert.GreaterOrEqual(t, v.ToxicityScore, 0.0, p)
		assert.LessOrEqual(t, v.ToxicityScore, 1.0, p)
	}
}

func TestCheckPromptLevelOrdering(t *testing.T) {
	c := newTestChecker(t)
	ctx := context.Background()
	for _, p := range corpus {
		strict := c.CheckPrompt(ctx, p, "strict", nil)
		standard := c.CheckPrompt(ctx, p, "standard", nil)
		permissive := c.CheckPrompt(ctx, p, "permissive", nil)

		if strict.Safe {
			assert.True(t, standard.Safe, p)
		}
		if standard.Safe {
			assert.True(t, permissive.Safe, p)
		}
		assert.Equal(t, strict.SafetyScore, permissive.SafetyScore, p)
	}
}

func TestCheckPromptUnknownLevel(t *testing.T) {
	c := newTestChecker(t)
	ctx := context.Background()

	assert.Equal(t, StandardThreshold, c.Threshold("paranoid"))
	for _, p := range corpus {
		assert.Equal(t, c.CheckPrompt(ctx, p, "standard", nil), c.CheckPrompt(ctx, p, "paranoid", nil), p)
	}
	assert.Equal(t, c.CheckPrompt(ctx, "hi", "standard", nil), c.CheckPrompt(ctx, "hi", "", nil))
}

func TestCheckPromptCustomThresholds(t *testing.T) {
	c, err := NewDefault(Thresholds{"strict": 0.99})
	require.NoError(t, err)

	assert.Equal(t, 0.99, c.Threshold("strict"))
	// standard is missing from the table and falls back
	assert.Equal(t, StandardThreshold, c.Threshold("standard"))
}

func TestCheckPromptIdempotent(t *testing.T) {
	c := newTestChecker(t)
	sit := &Situation{ContainsPersonalData: true}
	for _, p := range corpus {
		first := c.CheckPrompt(context.Background(), p, "strict", sit)
		second := c.CheckPrompt(context.Background(), p, "strict", sit)
		assert.Equal(t, first, second, p)
	}
}

func TestCheckPromptConcurrentCallers(t *testing.T) {
	c := newTestChecker(t)
	want := make([]Verdict, len(corpus))
	for i, p := range corpus {
		want[i] = c.CheckPrompt(context.Background(), p, "standard", nil)
	}

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, p := range corpus {
				assert.Equal(t, want[i], c.CheckPrompt(context.Background(), p, "standard", nil))
			}
		}()
	}
	wg.Wait()
}

func TestCheckPromptFailsClosed(t *testing.T) {
	// a zero Checker has no analyzers and panics inside the analysis
	c := &Checker{}
	v := c.CheckPrompt(context.Background(), "Describe a sunny day", "permissive", nil)

	assert.False(t, v.Safe)
	assert.Zero(t, v.SafetyScore)
	assert.Equal(t, RiskUnknown, v.RiskLevel)
	assert.Equal(t, 1.0, v.BiasScore)
	assert.Equal(t, 1.0, v.ToxicityScore)
	assert.Equal(t, []string{"Safety check error"}, v.DetectedIssues)
	assert.Equal(t, []string{"Safety system failure"}, v.EthicalViolations)
	assert.Equal(t, []string{"Contact system administrator"}, v.Recommendations)
	assert.True(t, strings.HasPrefix(v.Reason, "safety check error: "))
}

func TestNewRejectsMalformedPattern(t *testing.T) {
	tables := DefaultTables()
	tables.Ethical = append(tables.Ethical, Category{Name: "broken", Patterns: []string{`(unclosed`}})

	c, err := New(tables, nil)
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestCheckPromptSituation(t *testing.T) {
	c := newTestChecker(t)
	ctx := context.Background()

	plain := c.CheckPrompt(ctx, "Summarise my personal notes", "standard", nil)
	assert.NotContains(t, plain.EthicalViolations, "Potential privacy violation in context")

	flagged := c.CheckPrompt(ctx, "Summarise my personal notes", "standard", &Situation{ContainsPersonalData: true})
	assert.Contains(t, flagged.EthicalViolations, "Potential privacy violation in context")
	assert.Contains(t, flagged.DetectedIssues, "Potential privacy violation in context")

	sensitive := c.CheckPrompt(ctx, "How do ads influence voters", "standard", &Situation{SensitiveContext: true})
	assert.Contains(t, sensitive.EthicalViolations, "Potential manipulation in sensitive context")
}
