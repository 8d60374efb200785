// Package safety implements a rule-based safety and bias screen for prompts.
//
// Text is scanned against fixed pattern tables by four independent analyzers
// (harmful content, bias, ethics, toxicity). Their results are combined into a
// single score in [0,1], a risk level and a list of recommendations. Nothing
// is learned or persisted; a Checker is safe for concurrent use.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Level names a strictness tier.
type Level string

const (
	LevelStrict     Level = "strict"
	LevelStandard   Level = "standard"
	LevelPermissive Level = "permissive"
)

// StandardThreshold is used for any level without a configured threshold.
const StandardThreshold = 0.7

// Thresholds maps level names to the minimum score a prompt needs to pass.
type Thresholds map[string]float64

// DefaultThresholds returns strict 0.9, standard 0.7, permissive 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		string(LevelStrict):     0.9,
		string(LevelStandard):   StandardThreshold,
		string(LevelPermissive): 0.5,
	}
}

// For returns the threshold of level, falling back to the standard one.
func (t Thresholds) For(level string) float64 {
	if v, ok := t[level]; ok {
		return v
	}
	return StandardThreshold
}

// Verdict is the result of a full safety check.
type Verdict struct {
	Safe              bool      `json:"is_safe"`
	SafetyScore       float64   `json:"safety_score"`
	RiskLevel         RiskLevel `json:"risk_level"`
	DetectedIssues    []string  `json:"detected_issues"`
	BiasScore         float64   `json:"bias_score"`
	ToxicityScore     float64   `json:"toxicity_score"`
	EthicalViolations []string  `json:"ethical_violations"`
	Recommendations   []string  `json:"recommendations"`
	ToxicTerms        []string  `json:"toxic_terms"`
	Reason            string    `json:"reason,omitempty"`
}

// failClosed is returned whenever the analysis could not complete.
func failClosed(err error) Verdict {
	return Verdict{
		Safe:              false,
		SafetyScore:       0,
		RiskLevel:         RiskUnknown,
		DetectedIssues:    []string{"Safety check error"},
		BiasScore:         1,
		ToxicityScore:     1,
		EthicalViolations: []string{"Safety system failure"},
		Recommendations:   []string{"Contact system administrator"},
		ToxicTerms:        []string{},
		Reason:            fmt.Sprintf("safety check error: %v", err),
	}
}

// Checker runs the analyzers and produces verdicts.
type Checker struct {
	thresholds Thresholds
	denyList   []string

	content  *ContentAnalyzer
	bias     *BiasDetector
	ethical  *EthicalChecker
	toxicity *ToxicityAssessor
	scorer   *Scorer
}

// New compiles tables into a Checker. A nil thresholds map uses the defaults.
func New(tables Tables, thresholds Thresholds) (*Checker, error) {
	harmful, err := compileSet(tables.Harmful)
	if err != nil {
		return nil, fmt.Errorf("harmful patterns: %w", err)
	}
	bias, err := compileSet(tables.Bias)
	if err != nil {
		return nil, fmt.Errorf("bias patterns: %w", err)
	}
	ethical, err := compileSet(tables.Ethical)
	if err != nil {
		return nil, fmt.Errorf("ethical patterns: %w", err)
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}

	deny := make([]string, len(tables.DenyList))
	for i, w := range tables.DenyList {
		deny[i] = strings.ToLower(w)
	}

	return &Checker{
		thresholds: thresholds,
		denyList:   deny,
		content:    &ContentAnalyzer{set: harmful},
		bias:       &BiasDetector{set: bias, weights: tables.BiasWeights},
		ethical:    &EthicalChecker{set: ethical},
		toxicity:   &ToxicityAssessor{words: compileWords(tables.ToxicWords)},
		scorer:     NewScorer(tables.BiasMitigation),
	}, nil
}

// NewDefault builds a Checker from DefaultTables.
func NewDefault(thresholds Thresholds) (*Checker, error) {
	return New(DefaultTables(), thresholds)
}

// Threshold returns the cutoff used for level.
func (c *Checker) Threshold(level string) float64 {
	return c.thresholds.For(level)
}

// CheckPrompt runs every analyzer on prompt and returns a verdict. It never
// fails: internal errors and panics produce a fail-closed verdict.
func (c *Checker) CheckPrompt(ctx context.Context, prompt string, level string, situation *Situation) Verdict {
	if level == "" {
		level = string(LevelStandard)
	}

	v, err := c.check(ctx, prompt, level, situation)
	if err != nil {
		slog.Error("safety check failed", "error", err, "level", level)
		return failClosed(err)
	}

	slog.Info("safety check completed",
		"score", v.SafetyScore,
		"safe", v.Safe,
		"risk_level", v.RiskLevel,
		"level", level,
	)
	return v
}

func (c *Checker) check(ctx context.Context, prompt, level string, situation *Situation) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	threshold := c.thresholds.For(level)

	var (
		content, bias, ethical Analysis
		toxicity               Toxicity
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(guard(func() { content = c.content.Analyze(prompt) }))
	g.Go(guard(func() { bias = c.bias.Analyze(prompt) }))
	g.Go(guard(func() { ethical = c.ethical.Analyze(prompt, situation) }))
	g.Go(guard(func() { toxicity = c.toxicity.Analyze(prompt) }))
	if err := g.Wait(); err != nil {
		return Verdict{}, err
	}

	assessment := c.scorer.Score(content, bias, ethical, toxicity)

	issues := make([]string, 0, len(content.Issues)+len(bias.Issues)+len(ethical.Issues))
	issues = append(issues, content.Issues...)
	issues = append(issues, bias.Issues...)
	issues = append(issues, ethical.Issues...)

	safe := assessment.Score >= threshold
	v = Verdict{
		Safe:              safe,
		SafetyScore:       assessment.Score,
		RiskLevel:         assessment.RiskLevel,
		DetectedIssues:    issues,
		BiasScore:         bias.Aggregate,
		ToxicityScore:     toxicity.Score,
		EthicalViolations: ethical.Issues,
		Recommendations:   assessment.Recommendations,
		ToxicTerms:        toxicity.Instances,
	}
	if !safe {
		v.Reason = "safety threshold not met"
	}
	return v, nil
}

// guard adapts an analyzer call to errgroup, turning a panic into an error.
func guard(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("analyzer panic: %v", r)
			}
		}()
		fn()
		return nil
	}
}

// QuickCheck is a cheap substring screen against the deny list. It returns
// false if any deny-listed word appears anywhere in prompt.
func (c *Checker) QuickCheck(prompt string) bool {
	return quickCheck(prompt, c.denyList)
}

// QuickCheck screens prompt against the default deny list.
func QuickCheck(prompt string) bool {
	return quickCheck(prompt, DefaultTables().DenyList)
}

func quickCheck(prompt string, deny []string) bool {
	lower := strings.ToLower(prompt)
	for _, w := range deny {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}
