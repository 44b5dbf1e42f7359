// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	service "github.com/okian/churnbatch/internal/app"
	"github.com/okian/churnbatch/internal/domain/jobs"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Submit(ctx context.Context, up service.Upload) (string, error)
	JobStatus(id string) (jobs.StatusView, bool)
	Job(id string) (model.BatchJob, bool)
	Cancel(id string) error
	MaxFileSize() int64

	ModelHealthy() bool
	ModelMetadata() scoring.ModelMetadata
	ClearCache()
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	batchHandler  *BatchHandler
	modelHandler  *ModelHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(deps.ModelHealthy),
		statsHandler:  NewStatsHandler(statsProvider),
		batchHandler:  NewBatchHandler(deps),
		modelHandler:  NewModelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/batch/upload", MetricsMiddleware(s.batchHandler.HandleUpload, "batch_upload"))
	mux.HandleFunc("/batch/status/", MetricsMiddleware(s.batchHandler.HandleStatus, "batch_status"))
	mux.HandleFunc("/batch/jobs/", MetricsMiddleware(s.batchHandler.HandleJob, "batch_job"))
	mux.HandleFunc("/batch/", MetricsMiddleware(s.batchHandler.HandleCancel, "batch_cancel"))
	mux.HandleFunc("/model/health", MetricsMiddleware(s.modelHandler.HandleHealth, "model_health"))
	mux.HandleFunc("/model/cache", MetricsMiddleware(s.modelHandler.HandleClearCache, "model_cache"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// pathID returns the single path segment after prefix, or "".
func pathID(r *http.Request, prefix string) string {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// clientIP returns the originating address of the request, preferring proxy
// headers over the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
