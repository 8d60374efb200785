package safety

import (
	"fmt"
	"strings"
)

// Per-match increments for each analyzer.
const (
	contentIncrement  = 0.2
	biasIncrement     = 0.3
	ethicalIncrement  = 0.4
	toxicityIncrement = 0.1
)

// CategoryScore is the clamped score of one category.
type CategoryScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Analysis is the output of a pattern-table analyzer.
type Analysis struct {
	Categories []CategoryScore `json:"categories"`
	Issues     []string        `json:"issues"`
	Aggregate  float64         `json:"aggregate"`
}

// Score returns the score recorded for a category, or 0.
func (a Analysis) Score(category string) float64 {
	for _, c := range a.Categories {
		if c.Name == category {
			return c.Score
		}
	}
	return 0
}

func (a Analysis) max() float64 {
	m := 0.0
	for _, c := range a.Categories {
		if c.Score > m {
			m = c.Score
		}
	}
	return m
}

// ContentAnalyzer scores text against the harmful-content patterns.
type ContentAnalyzer struct {
	set compiledSet
}

// Analyze aggregates with worst-category-wins.
func (c *ContentAnalyzer) Analyze(text string) Analysis {
	a := c.set.scan(strings.ToLower(text), contentIncrement, func(category string, matches []string) string {
		return fmt.Sprintf("Detected %s content: %q", category, matches)
	})
	a.Aggregate = a.max()
	return a
}

// BiasDetector scores text against the bias-indicator patterns.
type BiasDetector struct {
	set     compiledSet
	weights map[string]float64
}

// Analyze aggregates with a weighted sum over categories. Bias is additive
// across dimensions, unlike content and ethics.
func (b *BiasDetector) Analyze(text string) Analysis {
	a := b.set.scan(strings.ToLower(text), biasIncrement, func(category string, matches []string) string {
		return fmt.Sprintf("Potential %s: %q", category, matches)
	})
	sum := 0.0
	for _, c := range a.Categories {
		sum += c.Score * b.weights[c.Name]
	}
	a.Aggregate = clamp(sum)
	return a
}

// Situation carries optional flags about the context a prompt is used in.
type Situation struct {
	ContainsPersonalData bool `json:"contains_personal_data"`
	SensitiveContext     bool `json:"sensitive_context"`
}

// EthicalChecker scores text against the ethical-violation patterns.
type EthicalChecker struct {
	set compiledSet
}

// Analyze returns violations as Issues and aggregates with max. A nil
// situation skips the context checks.
func (e *EthicalChecker) Analyze(text string, situation *Situation) Analysis {
	lower := strings.ToLower(text)
	a := e.set.scan(lower, ethicalIncrement, func(category string, matches []string) string {
		return fmt.Sprintf("Ethical violation (%s): %q", category, matches)
	})
	if situation != nil {
		if situation.ContainsPersonalData && (strings.Contains(lower, "personal") || strings.Contains(lower, "private")) {
			a.Issues = append(a.Issues, "Potential privacy violation in context")
		}
		if situation.SensitiveContext && (strings.Contains(lower, "manipulate") || strings.Contains(lower, "influence")) {
			a.Issues = append(a.Issues, "Potential manipulation in sensitive context")
		}
	}
	a.Aggregate = a.max()
	return a
}

// Toxicity is the output of the toxicity assessor.
type Toxicity struct {
	Score     float64  `json:"score"`
	Instances []string `json:"instances"`
}

// ToxicityAssessor counts whole-word occurrences of a fixed vocabulary.
type ToxicityAssessor struct {
	words []toxicWord
}

func (t *ToxicityAssessor) Analyze(text string) Toxicity {
	lower := strings.ToLower(text)
	out := Toxicity{Instances: []string{}}
	score := 0.0
	for _, w := range t.words {
		n := len(w.re.FindAllStringIndex(lower, -1))
		if n == 0 {
			continue
		}
		score += float64(n) * toxicityIncrement
		out.Instances = append(out.Instances, fmt.Sprintf("Toxic word '%s': %d instances", w.word, n))
	}
	out.Score = clamp(score)
	return out
}
