package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/churnbatch/internal/adapters/decoder"
	"github.com/okian/churnbatch/internal/adapters/http/api"
	service "github.com/okian/churnbatch/internal/app"
	"github.com/okian/churnbatch/internal/domain/jobs"
	"github.com/okian/churnbatch/internal/domain/model"
	"github.com/okian/churnbatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	submitted   []service.Upload
	body        string
	submitErr   error
	jobs        map[string]model.BatchJob
	cancelErr   error
	cancelled   []string
	healthy     bool
	cacheClears int
}

func (m *mockDeps) Submit(_ context.Context, up service.Upload) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	b, err := io.ReadAll(up.Body)
	if err != nil {
		return "", err
	}
	m.body = string(b)
	m.submitted = append(m.submitted, up)
	return "job-42", nil
}

func (m *mockDeps) JobStatus(id string) (jobs.StatusView, bool) {
	j, ok := m.jobs[id]
	if !ok {
		return jobs.StatusView{}, false
	}
	return jobs.StatusView{
		JobID:        j.JobID,
		Status:       j.Status,
		Processed:    j.ProcessedRecords,
		SuccessCount: j.SuccessCount,
		ErrorCount:   j.ErrorCount,
		Message:      j.Message,
	}, true
}

func (m *mockDeps) Job(id string) (model.BatchJob, bool) {
	j, ok := m.jobs[id]
	return j, ok
}

func (m *mockDeps) Cancel(id string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockDeps) MaxFileSize() int64 { return 1 << 20 }
func (m *mockDeps) ModelHealthy() bool { return m.healthy }
func (m *mockDeps) ClearCache()        { m.cacheClears++ }

func (m *mockDeps) ModelMetadata() scoring.ModelMetadata {
	return scoring.DefaultModelMetadata()
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "activeJobs": 1}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(mux)
	return mux
}

func multipartRequest(field, filename, content string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "ignored")
	fw, _ := mw.CreateFormFile(field, filename)
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/batch/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(rec *httptest.ResponseRecorder, v any) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		panic(err)
	}
}

func TestUpload(t *testing.T) {
	Convey("Given the batch API", t, func() {
		deps := &mockDeps{healthy: true}
		mux := newMux(deps)

		Convey("When a CSV file is uploaded through a proxy", func() {
			req := multipartRequest("file", "clients.csv", "user_id,gender\n")
			req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the job is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				var resp map[string]string
				decode(rec, &resp)
				So(resp["job_id"], ShouldEqual, "job-42")
				So(resp["status"], ShouldEqual, "INITIALIZING")
				So(resp["filename"], ShouldEqual, "clients.csv")
			})

			Convey("Then the service receives the file and the client address", func() {
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].Filename, ShouldEqual, "clients.csv")
				So(deps.submitted[0].RequesterIP, ShouldEqual, "198.51.100.4")
				So(deps.body, ShouldEqual, "user_id,gender\n")
			})
		})

		Convey("When the request has no file field", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, multipartRequest("other", "clients.csv", "x"))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not multipart", func() {
			req := httptest.NewRequest(http.MethodPost, "/batch/upload", bytes.NewBufferString("{}"))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service rejects the upload", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{decoder.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
				{decoder.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
				{service.ErrEmptyUpload, http.StatusBadRequest, "empty_file"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
				{errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.submitErr = c.err
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, multipartRequest("file", "clients.csv", "x"))

				So(rec.Code, ShouldEqual, c.status)
				var resp map[string]string
				decode(rec, &resp)
				So(resp["code"], ShouldEqual, c.code)
			}
		})

		Convey("When the wrong method is used", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch/upload", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestJobQueries(t *testing.T) {
	Convey("Given a tracked job", t, func() {
		deps := &mockDeps{jobs: map[string]model.BatchJob{
			"j1": {
				JobID:            "j1",
				Status:           model.StatusCompleted,
				TotalRecords:     3,
				ProcessedRecords: 3,
				SuccessCount:     2,
				ErrorCount:       1,
				Message:          "done",
				Errors:           []model.ProcessingError{{Line: 4, Message: "line 4: column age: invalid value \"x\""}},
			},
		}}
		mux := newMux(deps)

		Convey("When its status is queried", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch/status/j1", nil))

			Convey("Then the flat view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var v jobs.StatusView
				decode(rec, &v)
				So(v.JobID, ShouldEqual, "j1")
				So(v.Status, ShouldEqual, model.StatusCompleted)
				So(v.Processed, ShouldEqual, 3)
				So(v.SuccessCount, ShouldEqual, 2)
				So(v.ErrorCount, ShouldEqual, 1)
				So(v.Message, ShouldEqual, "done")
			})
		})

		Convey("When its details are queried", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch/jobs/j1", nil))

			Convey("Then the error list is included", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					TotalRecords int64 `json:"total_records"`
					Errors       []struct {
						Line int `json:"line"`
					} `json:"errors"`
				}
				decode(rec, &resp)
				So(resp.TotalRecords, ShouldEqual, 3)
				So(len(resp.Errors), ShouldEqual, 1)
				So(resp.Errors[0].Line, ShouldEqual, 4)
			})
		})

		Convey("When an unknown or malformed id is queried", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch/status/nope", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)

			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batch/status/a/b", nil))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When it is cancelled", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/batch/j1", nil))
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(deps.cancelled, ShouldResemble, []string{"j1"})

			deps.cancelErr = service.ErrJobFinished
			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/batch/j1", nil))
			So(rec.Code, ShouldEqual, http.StatusConflict)

			deps.cancelErr = service.ErrJobNotFound
			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/batch/zz", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		deps := &mockDeps{healthy: true}
		mux := newMux(deps)

		Convey("When model health is requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/health", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)

			deps.healthy = false
			rec = httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/health", nil))
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the cache is cleared", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/model/cache", nil))
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(deps.cacheClears, ShouldEqual, 1)
		})

		Convey("When health is requested as JSON", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set("Accept", "application/json")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("When health is requested by a scraper", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "churn_batch_")
		})

		Convey("When stats are requested", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			decode(rec, &stats)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("When stats are narrowed to some fields", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?fields=activeJobs,unknown", nil))
			var stats map[string]any
			decode(rec, &stats)
			So(stats, ShouldResemble, map[string]any{"activeJobs": float64(1)})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		cause := decoder.ErrFileTooLarge
		err := api.WrapKind("api.upload", api.ErrTooLarge, cause)

		Convey("Then both kind and cause are matchable", func() {
			So(errors.Is(err, api.ErrTooLarge), ShouldBeTrue)
			So(errors.Is(err, decoder.ErrFileTooLarge), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.upload: file too large")
			So(api.NewKind("api.cancel", api.ErrNotFound).Error(), ShouldEqual, "api.cancel: not found")
		})
	})
}
