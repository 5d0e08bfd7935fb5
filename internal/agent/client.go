package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// Client talks to the queue backend's agent endpoints with the shared
// static bearer token.
type Client struct {
	baseURL string
	token   string
	agentID string
	http    *http.Client
}

func NewClient(serverURL, token, agentID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		token:   token,
		agentID: agentID,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// JobDescriptor is the claim handed out by the backend: enough to download
// the payload and decide whether it needs rendering.
type JobDescriptor struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	Ext         string `json:"ext"`
	RequestedBy string `json:"requested_by"`
	DownloadURL string `json:"download_url"`
}

type nextJobResponse struct {
	Job *JobDescriptor `json:"job"`
}

// NextJob claims the oldest pending job. A nil descriptor means the queue
// is empty.
func (c *Client) NextJob(ctx context.Context) (*JobDescriptor, error) {
	endpoint := fmt.Sprintf("%s/api/agent/jobs/next?agent_id=%s", c.baseURL, url.QueryEscape(c.agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build next-job request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll for work: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError("next-job", resp)
	}

	var body nextJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode next-job response: %w", err)
	}

	return body.Job, nil
}

// Download streams the job payload to dest. The partial file is removed on
// any failure so the work dir never accumulates torn downloads.
func (c *Client) Download(ctx context.Context, job *JobDescriptor, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+job.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError("download", resp)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create payload file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write payload file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to close payload file: %w", err)
	}

	return nil
}

func (c *Client) ReportDone(ctx context.Context, jobID int64) error {
	return c.report(ctx, fmt.Sprintf("/api/agent/jobs/%d/done", jobID), nil)
}

func (c *Client) ReportFailed(ctx context.Context, jobID int64, reason string) error {
	return c.report(ctx, fmt.Sprintf("/api/agent/jobs/%d/failed", jobID), map[string]string{"reason": reason})
}

func (c *Client) report(ctx context.Context, path string, body interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal report body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to report outcome: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpError("report", resp)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// httpError folds the status and a slice of the response body into one
// diagnostic; it ends up in fail_reason, so keep it short.
func httpError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(detail))
	if msg == "" {
		return fmt.Errorf("%s failed: status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s failed: status %d: %s", op, resp.StatusCode, msg)
}
