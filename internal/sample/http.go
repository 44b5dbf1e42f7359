package sample

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnexpectedStatus is returned for responses outside the expected codes.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to the batch HTTP API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Upload posts the file at path to /batch/upload and returns the job id.
// The body is streamed through a pipe so large files are not buffered.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/batch/upload", pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ack struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(req, http.StatusAccepted, &ack); err != nil {
		return "", err
	}
	return ack.JobID, nil
}

// Job fetches the full job view.
func (c *Client) Job(ctx context.Context, id string) (JobReport, error) {
	var rep JobReport
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/batch/jobs/"+id, nil)
	if err != nil {
		return rep, err
	}
	err = c.do(req, http.StatusOK, &rep)
	return rep, err
}

// Cancel asks the service to stop a running job.
func (c *Client) Cancel(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/batch/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusAccepted, nil)
}

// Await polls the job until it is terminal. onPoll, when set, sees every
// intermediate report.
func (c *Client) Await(ctx context.Context, id string, every time.Duration, onPoll func(JobReport)) (JobReport, int, error) {
	if every <= 0 {
		every = DefaultPollInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	polls := 0
	for {
		rep, err := c.Job(ctx, id)
		polls++
		if err != nil {
			return rep, polls, err
		}
		if onPoll != nil {
			onPoll(rep)
		}
		if rep.Terminal() {
			return rep, polls, nil
		}

		select {
		case <-ctx.Done():
			return rep, polls, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Health checks /healthz. Any 200 counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, http.StatusOK, nil)
}
