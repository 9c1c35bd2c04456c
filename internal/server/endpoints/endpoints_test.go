package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/finalyzer/finalyzer/internal/analyzer"
	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/internal/engine"
	"github.com/finalyzer/finalyzer/internal/home"
	"github.com/finalyzer/finalyzer/internal/queue"
	"github.com/finalyzer/finalyzer/internal/store"
	"github.com/finalyzer/finalyzer/internal/svcctx"
)

type stubEngine struct {
	mu          sync.Mutex
	analyzeErr  error
	calls       int
	lastQuery   string
	suitability bool
}

func (s *stubEngine) Verify(ctx context.Context, document string) (*engine.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &engine.Verification{IsFinancialDocument: s.suitability, DocumentType: "10-K"}, nil
}

func (s *stubEngine) Analyze(ctx context.Context, query, document string) (*engine.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastQuery = query
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return &engine.Analysis{Text: "analysis: " + query}, nil
}

// harness wires a real store, memory queue, processor and worker pool
// behind an httptest server.
type harness struct {
	srv      *httptest.Server
	store    *store.Store
	queue    *queue.Memory
	home     *home.Dir
	eng      *stubEngine
	cancel   context.CancelFunc
	poolDone chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}

	q := queue.NewMemory(16)
	t.Cleanup(func() { q.Close() })

	eng := &stubEngine{suitability: true}
	processor := analyzer.NewProcessor(analyzer.Config{Store: s, Engine: eng})

	engines := engine.NewRegistry()
	engines.Reload(engine.Options{APIKey: "test-key"})

	services := &svcctx.Services{
		Store:     s,
		Queue:     q,
		Processor: processor,
		Engines:   engines,
		Home:      h,
	}

	mux := http.NewServeMux()
	reg := api.NewRegistry()
	for _, ep := range All() {
		reg.Register(ep)
	}
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	pool := analyzer.NewPool(analyzer.PoolConfig{Queue: q, Processor: processor, Count: 1})
	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-poolDone:
		case <-time.After(5 * time.Second):
			t.Error("worker pool did not stop")
		}
	})

	return &harness{srv: srv, store: s, queue: q, home: h, eng: eng, cancel: cancel, poolDone: poolDone}
}

// postDocument uploads a file with optional query and decodes the response.
func (h *harness) postDocument(t *testing.T, path, filename, query string, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write([]byte("%PDF-1.4 test document"))
	if query != "" {
		mw.WriteField("query", query)
	}
	mw.Close()

	resp, err := http.Post(h.srv.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		body, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decoding response %q: %v", body, err)
		}
	}
	return resp
}

func (h *harness) getJSON(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return resp
}

func (h *harness) waitForTerminal(t *testing.T, jobID string) JobResponse {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		var job JobResponse
		resp := h.getJSON(t, "/api/analyze/"+jobID, &job)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("poll status = %d", resp.StatusCode)
		}
		if job.Status == string(store.StatusCompleted) || job.Status == string(store.StatusFailed) {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never finished, status = %s", jobID, job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (h *harness) uploadsLeft(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(h.home.UploadsPath())
	if err != nil {
		t.Fatalf("reading uploads dir: %v", err)
	}
	return len(entries)
}

func TestAnalyzeLifecycle(t *testing.T) {
	h := newHarness(t)

	var accepted AnalyzeResponse
	resp := h.postDocument(t, "/api/analyze", "report.pdf", "What are the key risks?", &accepted)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if accepted.JobID == "" || accepted.Status != string(store.StatusPending) {
		t.Fatalf("accepted = %+v", accepted)
	}

	job := h.waitForTerminal(t, accepted.JobID)
	if job.Status != string(store.StatusCompleted) {
		t.Fatalf("job = %+v", job)
	}
	if job.Analysis != "analysis: What are the key risks?" {
		t.Errorf("Analysis = %q", job.Analysis)
	}
	if job.Error != "" {
		t.Errorf("Error = %q, want empty", job.Error)
	}
	if job.FileProcessed != "report.pdf" {
		t.Errorf("FileProcessed = %q", job.FileProcessed)
	}
	if h.uploadsLeft(t) != 0 {
		t.Error("upload not cleaned up after completion")
	}
}

func TestAnalyzeBlankQueryUsesDefault(t *testing.T) {
	h := newHarness(t)

	var accepted AnalyzeResponse
	h.postDocument(t, "/api/analyze", "report.pdf", "", &accepted)

	job := h.waitForTerminal(t, accepted.JobID)
	if job.Query != fallbackQuery {
		t.Errorf("Query = %q, want default", job.Query)
	}
}

func TestAnalyzeRejectsNonPDF(t *testing.T) {
	h := newHarness(t)

	var errResp ErrorResponse
	resp := h.postDocument(t, "/api/analyze", "notes.txt", "q", &errResp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(errResp.Error, "PDF") {
		t.Errorf("error = %q", errResp.Error)
	}

	// No job row and no file left behind.
	var list ListJobsResponse
	h.getJSON(t, "/api/jobs", &list)
	if list.Count != 0 {
		t.Errorf("jobs created for rejected upload: %d", list.Count)
	}
	if h.uploadsLeft(t) != 0 {
		t.Error("rejected upload left on disk")
	}
}

func TestAnalyzeQueueUnavailable(t *testing.T) {
	h := newHarness(t)
	h.queue.Close()

	var errResp ErrorResponse
	resp := h.postDocument(t, "/api/analyze", "report.pdf", "q", &errResp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(errResp.Error, "/api/analyze/sync") {
		t.Errorf("error should point at sync endpoint: %q", errResp.Error)
	}

	// The job exists and is FAILED, the upload is gone.
	var list ListJobsResponse
	h.getJSON(t, "/api/jobs", &list)
	if list.Count != 1 {
		t.Fatalf("job count = %d, want 1", list.Count)
	}
	if list.Jobs[0].Status != string(store.StatusFailed) {
		t.Errorf("job status = %s, want FAILED", list.Jobs[0].Status)
	}
	if !strings.Contains(list.Jobs[0].Error, "Failed to enqueue") {
		t.Errorf("job error = %q", list.Jobs[0].Error)
	}
	if h.uploadsLeft(t) != 0 {
		t.Error("upload left on disk after enqueue failure")
	}
}

func TestGetUnknownJob(t *testing.T) {
	h := newHarness(t)

	resp := h.getJSON(t, "/api/analyze/no-such-job", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAnalyzeSync(t *testing.T) {
	h := newHarness(t)

	var result AnalyzeSyncResponse
	resp := h.postDocument(t, "/api/analyze/sync", "report.pdf", "Summarize revenue", &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if result.Status != "success" {
		t.Errorf("Status = %q", result.Status)
	}
	if result.Analysis != "analysis: Summarize revenue" {
		t.Errorf("Analysis = %q", result.Analysis)
	}
	if result.FileProcessed != "report.pdf" {
		t.Errorf("FileProcessed = %q", result.FileProcessed)
	}

	// Sync runs create no job rows and leave no files.
	var list ListJobsResponse
	h.getJSON(t, "/api/jobs", &list)
	if list.Count != 0 {
		t.Errorf("sync run created %d job rows", list.Count)
	}
	if h.uploadsLeft(t) != 0 {
		t.Error("sync upload left on disk")
	}
}

func TestAnalyzeSyncEngineFailure(t *testing.T) {
	h := newHarness(t)
	h.eng.analyzeErr = &engine.Failure{Stage: "analyze", Err: fmt.Errorf("backend down")}

	var errResp ErrorResponse
	resp := h.postDocument(t, "/api/analyze/sync", "report.pdf", "q", &errResp)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(errResp.Error, "Error processing document") {
		t.Errorf("error = %q", errResp.Error)
	}
	if h.uploadsLeft(t) != 0 {
		t.Error("upload left on disk after sync failure")
	}
}

func TestAnalyzeUnsuitableDocumentFailsJob(t *testing.T) {
	h := newHarness(t)
	h.eng.suitability = false

	var accepted AnalyzeResponse
	h.postDocument(t, "/api/analyze", "cv.pdf", "q", &accepted)

	job := h.waitForTerminal(t, accepted.JobID)
	if job.Status != string(store.StatusFailed) {
		t.Fatalf("job = %+v", job)
	}
	if job.Analysis != "" {
		t.Errorf("failed job has analysis %q", job.Analysis)
	}
	if !strings.Contains(job.Error, "financial document") {
		t.Errorf("Error = %q", job.Error)
	}
}

func TestHealthAndRoot(t *testing.T) {
	h := newHarness(t)

	var health HealthResponse
	resp := h.getJSON(t, "/health", &health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Errorf("health = %d %+v", resp.StatusCode, health)
	}

	var root RootResponse
	resp = h.getJSON(t, "/", &root)
	if resp.StatusCode != http.StatusOK || !strings.Contains(root.Message, "running") {
		t.Errorf("root = %d %+v", resp.StatusCode, root)
	}
}

func TestReady(t *testing.T) {
	h := newHarness(t)

	var ready HealthResponse
	resp := h.getJSON(t, "/ready", &ready)
	if resp.StatusCode != http.StatusOK || ready.Status != "ok" {
		t.Errorf("ready = %d %+v", resp.StatusCode, ready)
	}
}

func TestListJobsStatusFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	completed := &store.Job{ID: "job-done", Query: "q", FileName: "a.pdf", FilePath: "/tmp/a.pdf"}
	h.store.Create(ctx, completed)
	h.store.ClaimProcessing(ctx, completed.ID)
	h.store.Complete(ctx, completed.ID, "fine")

	failed := &store.Job{ID: "job-bad", Query: "q", FileName: "b.pdf", FilePath: "/tmp/b.pdf"}
	h.store.Create(ctx, failed)
	h.store.Fail(ctx, failed.ID, "boom")

	var list ListJobsResponse
	h.getJSON(t, "/api/jobs?status=failed", &list)
	if list.Count != 1 || list.Jobs[0].JobID != failed.ID {
		t.Errorf("filtered list = %+v", list)
	}

	h.getJSON(t, "/api/jobs", &list)
	if list.Count != 2 {
		t.Errorf("unfiltered count = %d, want 2", list.Count)
	}

	var errResp ErrorResponse
	resp := h.getJSON(t, "/api/jobs?status=bogus", &errResp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus status = %d, want 400", resp.StatusCode)
	}
}
