package api

import (
	"net/http"
	"strings"
)

// StatsProvider exposes a point-in-time snapshot of pipeline counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler backed by provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats writes the snapshot as JSON. ?fields=a,b narrows the response
// to the named keys; unknown names are ignored.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	stats := h.provider.GetStats()
	if fields := r.URL.Query().Get("fields"); fields != "" {
		picked := make(map[string]interface{})
		for _, f := range strings.Split(fields, ",") {
			if v, ok := stats[strings.TrimSpace(f)]; ok {
				picked[strings.TrimSpace(f)] = v
			}
		}
		stats = picked
	}
	writeJSON(w, http.StatusOK, stats)
}
