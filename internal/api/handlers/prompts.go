package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/metaprompt/internal/engine"
	"github.com/nikhilbhutani/metaprompt/internal/llm"
)

// Processor screens a prompt and forwards it to a model.
type Processor interface {
	ProcessPrompt(ctx context.Context, req engine.Request) (*engine.Result, error)
}

type PromptHandler struct {
	engine Processor
}

func NewPromptHandler(p Processor) *PromptHandler {
	return &PromptHandler{engine: p}
}

// Process maps rejections to 422 and provider failures to 502.
func (h *PromptHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.ProcessPrompt(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, engine.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "prompt required")
	case errors.Is(err, engine.ErrMissingVariables):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrPromptRejected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, llm.ErrNoAdapter):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("prompt processing failed", "error", err, "model", req.Model)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
