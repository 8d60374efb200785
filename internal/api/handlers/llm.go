package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/metaprompt/internal/llm"
)

// ModelLister reports the models of every configured provider.
type ModelLister interface {
	ListModels() []llm.ModelInfo
}

type LLMHandler struct {
	models       ModelLister
	defaultModel string
}

func NewLLMHandler(models ModelLister, defaultModel string) *LLMHandler {
	return &LLMHandler{models: models, defaultModel: defaultModel}
}

func (h *LLMHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.models.ListModels()
	if models == nil {
		models = []llm.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":        models,
		"default_model": h.defaultModel,
	})
}
