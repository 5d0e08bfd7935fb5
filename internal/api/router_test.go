package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Fariz36/print-arkav/internal/config"
	"github.com/Fariz36/print-arkav/internal/db"
	"github.com/Fariz36/print-arkav/internal/queue"
	"github.com/Fariz36/print-arkav/internal/storage"
)

const testAgentToken = "agent-secret"

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{Port: 3000},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "jobs.db")},
		Storage:  config.StorageConfig{UploadDir: filepath.Join(dir, "uploads")},
		Uploads: config.UploadsConfig{
			MaxUploadBytes:    1 << 20,
			AllowedExtensions: []string{".cpp", ".py", ".c", ".java", ".pdf"},
		},
		Auth: config.AuthConfig{
			Secret:     "test-secret",
			TokenTTL:   config.Duration(time.Hour),
			AgentToken: testAgentToken,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	users := db.NewUserOperations(conn)
	if err := db.SeedDefaultUsers(context.Background(), users, "alpha:alpha-pass,beta:beta-pass"); err != nil {
		t.Fatalf("failed to seed users: %v", err)
	}

	store, err := storage.New(cfg.Storage.UploadDir)
	if err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}

	q := queue.New(db.NewJobOperations(conn), store, &cfg.Uploads)

	router, err := NewRouter(cfg, users, q)
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return router
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	w := doRequest(t, r, http.MethodPost, "/api/auth/login", "", strings.NewReader(body), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeBody(t, w, &resp)
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected login response: %s", w.Body.String())
	}
	return resp.AccessToken
}

func uploadFile(t *testing.T, r *gin.Engine, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return doRequest(t, r, http.MethodPost, "/api/upload", token, &buf, mw.FormDataContentType())
}

type jobBody struct {
	ID              int64  `json:"id"`
	Filename        string `json:"filename"`
	Ext             string `json:"ext"`
	Status          string `json:"status"`
	RequestedBy     string `json:"requested_by"`
	AssignedAgentID string `json:"assigned_agent_id"`
	FailReason      string `json:"fail_reason"`
}

func getJob(t *testing.T, r *gin.Engine, token string, id int64) (*jobBody, int) {
	t.Helper()

	w := doRequest(t, r, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), token, nil, "")
	if w.Code != http.StatusOK {
		return nil, w.Code
	}
	var resp struct {
		Job jobBody `json:"job"`
	}
	decodeBody(t, w, &resp)
	return &resp.Job, w.Code
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	w := doRequest(t, r, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		OK   bool   `json:"ok"`
		Time string `json:"time"`
	}
	decodeBody(t, w, &resp)
	if !resp.OK || resp.Time == "" {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestLoginAndMe(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	token := login(t, r, "alpha", "alpha-pass")

	w := doRequest(t, r, http.MethodGet, "/api/auth/me", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Username string `json:"username"`
		TeamName string `json:"team_name"`
	}
	decodeBody(t, w, &resp)
	if resp.Username != "alpha" || resp.TeamName != "alpha" {
		t.Errorf("unexpected identity: %+v", resp)
	}
}

func TestLoginRejections(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"alpha","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"ghost","password":"x"}`, http.StatusUnauthorized},
		{"missing fields", `{}`, http.StatusBadRequest},
		{"malformed body", `{"username":`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		w := doRequest(t, r, http.MethodPost, "/api/auth/login", "", strings.NewReader(tc.body), "application/json")
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestUserEndpointsRequireAuth(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/jobs"},
		{http.MethodGet, "/api/jobs/1"},
		{http.MethodGet, "/api/jobs/queue"},
		{http.MethodPost, "/api/upload"},
	}

	for _, p := range paths {
		w := doRequest(t, r, p.method, p.path, "", nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected 401, got %d", p.method, p.path, w.Code)
		}

		w = doRequest(t, r, p.method, p.path, "bogus-token", nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token: expected 401, got %d", p.method, p.path, w.Code)
		}
	}
}

func TestUploadListAndGet(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	alpha := login(t, r, "alpha", "alpha-pass")
	beta := login(t, r, "beta", "beta-pass")

	w := uploadFile(t, r, alpha, "main.cpp", "int main() { return 0; }\n")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		OK       bool   `json:"ok"`
		JobID    int64  `json:"job_id"`
		Filename string `json:"filename"`
		Status   string `json:"status"`
	}
	decodeBody(t, w, &created)
	if !created.OK || created.JobID == 0 {
		t.Fatalf("unexpected upload response: %s", w.Body.String())
	}
	if created.Filename != "main.cpp" || created.Status != "pending" {
		t.Errorf("unexpected upload response: %+v", created)
	}

	w = doRequest(t, r, http.MethodGet, "/api/jobs", alpha, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Jobs []jobBody `json:"jobs"`
	}
	decodeBody(t, w, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].Filename != "main.cpp" {
		t.Fatalf("unexpected job list: %s", w.Body.String())
	}
	// Internal storage details never leak into the API.
	if strings.Contains(w.Body.String(), "file_path") || strings.Contains(w.Body.String(), "stored_name") {
		t.Errorf("expected storage fields to be hidden: %s", w.Body.String())
	}

	job, code := getJob(t, r, alpha, created.JobID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if job.Status != "pending" || job.RequestedBy != "alpha" {
		t.Errorf("unexpected job: %+v", job)
	}

	// Other teams cannot see the job at all.
	if _, code := getJob(t, r, beta, created.JobID); code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign team, got %d", code)
	}
	w = doRequest(t, r, http.MethodGet, "/api/jobs", beta, nil, "")
	var betaList struct {
		Jobs []jobBody `json:"jobs"`
	}
	decodeBody(t, w, &betaList)
	if len(betaList.Jobs) != 0 {
		t.Errorf("expected empty list for beta, got %d jobs", len(betaList.Jobs))
	}

	// Malformed ids are a client error, not a server one.
	w = doRequest(t, r, http.MethodGet, "/api/jobs/abc", alpha, nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad id, got %d", w.Code)
	}
}

func TestUploadValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Uploads.MaxUploadBytes = 64
	r := newTestRouter(t, cfg)

	alpha := login(t, r, "alpha", "alpha-pass")

	w := doRequest(t, r, http.MethodPost, "/api/upload", alpha, strings.NewReader(""), "multipart/form-data")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a file part, got %d", w.Code)
	}

	w = uploadFile(t, r, alpha, "tool.exe", "MZ..")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a forbidden extension, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not allowed") {
		t.Errorf("expected a reason in the body, got %s", w.Body.String())
	}

	w = uploadFile(t, r, alpha, "big.pdf", strings.Repeat("a", 100))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for an oversize payload, got %d", w.Code)
	}

	// Nothing above left a job behind.
	w = doRequest(t, r, http.MethodGet, "/api/jobs", alpha, nil, "")
	var list struct {
		Jobs []jobBody `json:"jobs"`
	}
	decodeBody(t, w, &list)
	if len(list.Jobs) != 0 {
		t.Errorf("expected no jobs after rejected uploads, got %d", len(list.Jobs))
	}
}

func TestQueueStats(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	alpha := login(t, r, "alpha", "alpha-pass")

	w := doRequest(t, r, http.MethodGet, "/api/jobs/queue", alpha, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Queue queue.Stats `json:"queue"`
	}
	decodeBody(t, w, &resp)
	if resp.Queue.Total != 0 {
		t.Errorf("expected an empty queue, got %+v", resp.Queue)
	}

	uploadFile(t, r, alpha, "main.cpp", "x")

	w = doRequest(t, r, http.MethodGet, "/api/jobs/queue", alpha, nil, "")
	decodeBody(t, w, &resp)
	if resp.Queue.Pending != 1 || resp.Queue.Total != 1 {
		t.Errorf("expected one pending job, got %+v", resp.Queue)
	}
}

func TestAgentEndpointsRequireToken(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	w := doRequest(t, r, http.MethodGet, "/api/agent/jobs/next", "", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/api/agent/jobs/next", "wrong", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a wrong token, got %d", w.Code)
	}

	// A user JWT is not an agent token.
	userToken := login(t, r, "alpha", "alpha-pass")
	w = doRequest(t, r, http.MethodGet, "/api/agent/jobs/next", userToken, nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a user token, got %d", w.Code)
	}

	cfg := testConfig(t)
	cfg.Auth.AgentToken = ""
	unconfigured := newTestRouter(t, cfg)
	w = doRequest(t, unconfigured, http.MethodGet, "/api/agent/jobs/next", "anything", nil, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when no agent token is configured, got %d", w.Code)
	}
}

type claimedJob struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	Ext         string `json:"ext"`
	RequestedBy string `json:"requested_by"`
	DownloadURL string `json:"download_url"`
}

func claimNext(t *testing.T, r *gin.Engine, agentID string) *claimedJob {
	t.Helper()

	w := doRequest(t, r, http.MethodGet, "/api/agent/jobs/next?agent_id="+agentID, testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("next failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Job *claimedJob `json:"job"`
	}
	decodeBody(t, w, &resp)
	return resp.Job
}

func TestAgentLifecycle(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	alpha := login(t, r, "alpha", "alpha-pass")
	content := strings.Repeat("std::cout << \"hello\" << std::endl;\n", 50)

	w := uploadFile(t, r, alpha, "main.cpp", content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		JobID int64 `json:"job_id"`
	}
	decodeBody(t, w, &created)

	job := claimNext(t, r, "printer-1")
	if job == nil {
		t.Fatal("expected a job to claim")
	}
	if job.ID != created.JobID || job.Filename != "main.cpp" || job.Ext != ".cpp" {
		t.Fatalf("unexpected claim: %+v", job)
	}
	if job.RequestedBy != "alpha" {
		t.Errorf("expected requested_by alpha, got %q", job.RequestedBy)
	}
	if want := fmt.Sprintf("/api/agent/jobs/%d/download", job.ID); job.DownloadURL != want {
		t.Errorf("expected download url %q, got %q", want, job.DownloadURL)
	}

	// The owner sees the claim reflected.
	seen, code := getJob(t, r, alpha, job.ID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.Status != "processing" || seen.AssignedAgentID != "printer-1" {
		t.Errorf("expected processing by printer-1, got %+v", seen)
	}

	w = doRequest(t, r, http.MethodGet, job.DownloadURL, testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("download failed: %d %s", w.Code, w.Body.String())
	}
	if w.Body.String() != content {
		t.Errorf("downloaded payload does not match upload (%d vs %d bytes)", w.Body.Len(), len(content))
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "main.cpp") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}

	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/agent/jobs/%d/done", job.ID), testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("done failed: %d %s", w.Code, w.Body.String())
	}
	var outcome struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &outcome)
	if outcome.Status != "done" {
		t.Errorf("expected done, got %q", outcome.Status)
	}

	// Reporting done twice stays done.
	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/agent/jobs/%d/done", job.ID), testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("second done failed: %d", w.Code)
	}
	decodeBody(t, w, &outcome)
	if outcome.Status != "done" {
		t.Errorf("expected done to stay done, got %q", outcome.Status)
	}

	// The payload is deleted on completion.
	w = doRequest(t, r, http.MethodGet, job.DownloadURL, testAgentToken, nil, "")
	if w.Code != http.StatusGone {
		t.Errorf("expected 410 after completion, got %d", w.Code)
	}

	seen, code = getJob(t, r, alpha, job.ID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.Status != "done" {
		t.Errorf("expected done, got %q", seen.Status)
	}

	if next := claimNext(t, r, "printer-1"); next != nil {
		t.Errorf("expected an empty queue, got job %d", next.ID)
	}
}

func TestAgentFailureLifecycle(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	alpha := login(t, r, "alpha", "alpha-pass")
	uploadFile(t, r, alpha, "notes.py", "print('hi')\n")

	job := claimNext(t, r, "printer-1")
	if job == nil {
		t.Fatal("expected a job to claim")
	}

	body := `{"reason":"paper jam"}`
	w := doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/agent/jobs/%d/failed", job.ID), testAgentToken, strings.NewReader(body), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("failed report failed: %d %s", w.Code, w.Body.String())
	}
	var outcome struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &outcome)
	if outcome.Status != "failed" {
		t.Errorf("expected failed, got %q", outcome.Status)
	}

	seen, code := getJob(t, r, alpha, job.ID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if seen.Status != "failed" || seen.FailReason != "paper jam" {
		t.Errorf("expected failed with reason, got %+v", seen)
	}

	// Failed payloads stay on disk but are no longer served.
	w = doRequest(t, r, http.MethodGet, job.DownloadURL, testAgentToken, nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a failed job, got %d", w.Code)
	}

	// Done cannot overwrite a failure.
	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/agent/jobs/%d/done", job.ID), testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("done after failed errored: %d", w.Code)
	}
	decodeBody(t, w, &outcome)
	if outcome.Status != "failed" {
		t.Errorf("expected failed to stick, got %q", outcome.Status)
	}

	// A missing reason is tolerated.
	uploadFile(t, r, alpha, "again.py", "x")
	job = claimNext(t, r, "printer-1")
	w = doRequest(t, r, http.MethodPost, fmt.Sprintf("/api/agent/jobs/%d/failed", job.ID), testAgentToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("failed without body errored: %d %s", w.Code, w.Body.String())
	}
}

func TestAgentReportsOnUnknownJob(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	for _, path := range []string{
		"/api/agent/jobs/9999/done",
		"/api/agent/jobs/9999/failed",
	} {
		w := doRequest(t, r, http.MethodPost, path, testAgentToken, nil, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}

	w := doRequest(t, r, http.MethodGet, "/api/agent/jobs/9999/download", testAgentToken, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("download: expected 404, got %d", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/api/agent/jobs/abc/download", testAgentToken, nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
}

func TestAgentNextOnEmptyQueue(t *testing.T) {
	r := newTestRouter(t, testConfig(t))

	if job := claimNext(t, r, "printer-1"); job != nil {
		t.Fatalf("expected no job, got %+v", job)
	}
}
