package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
)

// ModelCatalog lists the selectable models. *llm.Registry implements it.
type ModelCatalog interface {
	Available() []llm.ModelInfo
	DefaultModel() string
}

// ModelsResponse lists models with a configured backend.
type ModelsResponse struct {
	Models  []llm.ModelInfo `json:"models"`
	Default string          `json:"default"`
}

// ModelsHandler exposes the model allow-list.
type ModelsHandler struct {
	catalog ModelCatalog
	logger  *zap.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(catalog ModelCatalog, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the models handler's routes on the given mux.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.List)
}

// List handles GET /api/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	available := h.catalog.Available()
	if available == nil {
		available = []llm.ModelInfo{}
	}
	response := ModelsResponse{Models: available, Default: h.catalog.DefaultModel()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
