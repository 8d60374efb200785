package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/metaprompt/internal/metrics"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

// SafetyChecker is the part of *safety.Checker the handlers use.
type SafetyChecker interface {
	CheckPrompt(ctx context.Context, prompt, level string, situation *safety.Situation) safety.Verdict
	QuickCheck(prompt string) bool
}

type SafetyHandler struct {
	checker      SafetyChecker
	defaultLevel string
	maxLength    int
}

func NewSafetyHandler(checker SafetyChecker, defaultLevel string, maxLength int) *SafetyHandler {
	return &SafetyHandler{checker: checker, defaultLevel: defaultLevel, maxLength: maxLength}
}

type checkRequest struct {
	Prompt      string            `json:"prompt"`
	SafetyLevel string            `json:"safety_level,omitempty"`
	Context     *safety.Situation `json:"context,omitempty"`
}

// Check returns the full verdict for a prompt.
func (h *SafetyHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.withinLimit(w, req.Prompt) {
		return
	}

	level := req.SafetyLevel
	if level == "" {
		level = h.defaultLevel
	}

	start := time.Now()
	v := h.checker.CheckPrompt(r.Context(), req.Prompt, level, req.Context)
	metrics.RecordSafetyCheck(string(v.RiskLevel), time.Since(start))

	writeJSON(w, http.StatusOK, v)
}

// Quick runs only the deny-list screen.
func (h *SafetyHandler) Quick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.withinLimit(w, req.Prompt) {
		return
	}

	safe := h.checker.QuickCheck(req.Prompt)
	metrics.RecordQuickCheck(safe)
	writeJSON(w, http.StatusOK, map[string]bool{"safe": safe})
}

func (h *SafetyHandler) withinLimit(w http.ResponseWriter, prompt string) bool {
	if h.maxLength > 0 && utf8.RuneCountInString(prompt) > h.maxLength {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("prompt exceeds %d characters", h.maxLength))
		return false
	}
	return true
}
