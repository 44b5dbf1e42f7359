package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/churnbatch/internal/adapters/decoder"
	service "github.com/okian/churnbatch/internal/app"
	"github.com/okian/churnbatch/internal/domain/model"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// uploadField is the multipart field carrying the file.
const uploadField = "file"

// uploadReplyTimeout bounds writing the upload response once the body is read.
const uploadReplyTimeout = 30 * time.Second

// BatchHandler handles job submission and tracking.
type BatchHandler struct {
	deps Dependencies
	now  func() time.Time
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps Dependencies) *BatchHandler {
	return &BatchHandler{deps: deps, now: time.Now}
}

type uploadResponse struct {
	JobID    string          `json:"job_id"`
	Status   model.JobStatus `json:"status"`
	Filename string          `json:"filename"`
}

type jobError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type jobResponse struct {
	JobID            string          `json:"job_id"`
	Status           model.JobStatus `json:"status"`
	Filename         string          `json:"filename"`
	FileSize         int64           `json:"file_size"`
	TotalRecords     int64           `json:"total_records"`
	ProcessedRecords int64           `json:"processed_records"`
	SuccessCount     int64           `json:"success_count"`
	ErrorCount       int64           `json:"error_count"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          *time.Time      `json:"end_time,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
	Throughput       float64         `json:"records_per_second"`
	Message          string          `json:"message"`
	Errors           []jobError      `json:"errors"`
}

// HandleUpload handles POST /batch/upload with a multipart "file" field.
func (h *BatchHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	// The server write timeout starts when headers are read, so a slow body
	// would leave no room for the reply. The body is bounded by the read
	// timeout; the reply gets its own window once the body is consumed.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	reply := func() { _ = rc.SetWriteDeadline(h.now().Add(uploadReplyTimeout)) }

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxFileSize()+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		reply()
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			reply()
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if err != nil {
			reply()
			h.writeSubmitError(w, op, err)
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		id, err := h.deps.Submit(r.Context(), service.Upload{
			Filename:    part.FileName(),
			RequesterIP: clientIP(r),
			Body:        part,
		})
		_ = part.Close()
		reply()
		if err != nil {
			h.writeSubmitError(w, op, err)
			return
		}

		writeJSON(w, http.StatusAccepted, uploadResponse{
			JobID:    id,
			Status:   model.StatusInitializing,
			Filename: part.FileName(),
		})
		return
	}
}

func (h *BatchHandler) writeSubmitError(w http.ResponseWriter, op string, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, decoder.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format", WrapKind(op, ErrUnsupported, err))
	case errors.Is(err, decoder.ErrFileTooLarge), errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", WrapKind(op, ErrTooLarge, err))
	case errors.Is(err, service.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "empty_file", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

// HandleStatus handles GET /batch/status/{job_id}.
func (h *BatchHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.job_status"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := pathID(r, "/batch/status/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	view, ok := h.deps.JobStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleJob handles GET /batch/jobs/{job_id}: the full job including its
// error list and throughput.
func (h *BatchHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := pathID(r, "/batch/jobs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	job, ok := h.deps.Job(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, h.jobResponse(job))
}

func (h *BatchHandler) jobResponse(job model.BatchJob) jobResponse {
	now := h.now()
	resp := jobResponse{
		JobID:            job.JobID,
		Status:           job.Status,
		Filename:         job.Filename,
		FileSize:         job.FileSize,
		TotalRecords:     job.TotalRecords,
		ProcessedRecords: job.ProcessedRecords,
		SuccessCount:     job.SuccessCount,
		ErrorCount:       job.ErrorCount,
		StartTime:        job.StartTime,
		DurationMs:       job.Duration(now).Milliseconds(),
		Throughput:       job.Throughput(now),
		Message:          job.Message,
		Errors:           make([]jobError, 0, len(job.Errors)),
	}
	if !job.EndTime.IsZero() {
		end := job.EndTime
		resp.EndTime = &end
	}
	for _, e := range job.Errors {
		resp.Errors = append(resp.Errors, jobError{Line: e.Line, Message: e.Message})
	}
	return resp
}

// HandleCancel handles DELETE /batch/{job_id}.
func (h *BatchHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id := pathID(r, "/batch/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch err := h.deps.Cancel(id); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "cancelling"})
	case errors.Is(err, service.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, service.ErrJobFinished):
		writeError(w, http.StatusConflict, "conflict", WrapKind(op, ErrConflict, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
