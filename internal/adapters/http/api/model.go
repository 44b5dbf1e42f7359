package api

import (
	"net/http"
)

// ModelHandler exposes model health and cache maintenance.
type ModelHandler struct {
	deps Dependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps Dependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

type modelHealthResponse struct {
	Healthy   bool    `json:"healthy"`
	Name      string  `json:"name"`
	Version   string  `json:"version"`
	Threshold float64 `json:"threshold"`
}

// HandleHealth handles GET /model/health.
func (h *ModelHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	meta := h.deps.ModelMetadata()
	resp := modelHealthResponse{
		Healthy:   h.deps.ModelHealthy(),
		Name:      meta.Name,
		Version:   meta.Version,
		Threshold: meta.Threshold,
	}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// HandleClearCache handles DELETE /model/cache.
func (h *ModelHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	h.deps.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
