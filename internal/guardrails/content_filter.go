package guardrails

import (
	"context"

	"github.com/nikhilbhutani/metaprompt/internal/metrics"
)

// QuickChecker is the cheap deny-list screen.
type QuickChecker interface {
	QuickCheck(prompt string) bool
}

// DenyListGuard blocks text containing any deny-listed word. It runs before
// the full verdict so obviously bad prompts never reach the analyzers.
type DenyListGuard struct {
	checker QuickChecker
}

func NewDenyListGuard(checker QuickChecker) *DenyListGuard {
	return &DenyListGuard{checker: checker}
}

func (f *DenyListGuard) Name() string { return "deny_list" }

func (f *DenyListGuard) Check(_ context.Context, text string) (*GuardrailResult, error) {
	safe := f.checker.QuickCheck(text)
	metrics.RecordQuickCheck(safe)
	if !safe {
		return &GuardrailResult{
			Allowed: false,
			Reason:  "prompt failed quick safety check",
			Flags:   []string{"blocked_deny_list"},
		}, nil
	}
	return &GuardrailResult{Allowed: true}, nil
}
