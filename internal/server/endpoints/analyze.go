package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/internal/queue"
	"github.com/finalyzer/finalyzer/internal/store"
	"github.com/finalyzer/finalyzer/internal/svcctx"
)

// fallbackQuery is used when no query is provided and no default is
// configured.
const fallbackQuery = "Analyze this financial document for investment insights"

// maxUploadMemory bounds in-memory multipart parsing (larger parts
// spill to disk).
const maxUploadMemory = 50 << 20 // 50MB

// AnalyzeResponse is returned after enqueueing an analysis job.
type AnalyzeResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AnalyzeEndpoint handles POST /api/analyze: save the upload, create a
// PENDING job and enqueue it.
type AnalyzeEndpoint struct{}

var _ api.Endpoint = (*AnalyzeEndpoint)(nil)

func (e *AnalyzeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/analyze", e.handler
}

func (e *AnalyzeEndpoint) RequiresInit() bool { return true }

func (e *AnalyzeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	upload, ok := saveUpload(w, r, uuid.NewString())
	if !ok {
		return
	}

	ctx := r.Context()
	jobStore := svcctx.StoreFrom(ctx)
	jobQueue := svcctx.QueueFrom(ctx)
	log := svcctx.LoggerFrom(ctx)

	job := &store.Job{
		ID:       upload.ID,
		Query:    upload.Query,
		FileName: upload.FileName,
		FilePath: upload.Path,
	}
	if err := jobStore.Create(ctx, job); err != nil {
		os.Remove(upload.Path)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create job: %v", err))
		return
	}

	if err := jobQueue.Publish(ctx, queue.Message{JobID: job.ID}); err != nil {
		// The job never reached a worker: record the failure, drop the
		// upload and point the caller at the blocking endpoint.
		if failErr := jobStore.Fail(ctx, job.ID, fmt.Sprintf("Failed to enqueue: %v", err)); failErr != nil && log != nil {
			log.Error("failed to record enqueue failure", "job_id", job.ID, "error", failErr)
		}
		os.Remove(upload.Path)
		writeError(w, http.StatusServiceUnavailable, "Queue unavailable; try /api/analyze/sync")
		return
	}

	if log != nil {
		log.Info("analysis job queued", "job_id", job.ID, "file", job.FileName)
	}

	writeJSON(w, http.StatusAccepted, AnalyzeResponse{
		JobID:   job.ID,
		Status:  string(store.StatusPending),
		Message: "Analysis queued. Poll GET /api/analyze/{job_id} for result.",
	})
}

func (e *AnalyzeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Submit a financial document for analysis",
		Long: `Upload a PDF and enqueue it for analysis.

Returns a job id immediately. Poll with:
  finalyzer api job <id>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{}
			if query != "" {
				fields["query"] = query
			}
			var resp AnalyzeResponse
			if err := client.PostDocument(cmd.Context(), "/api/analyze", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "analysis question (defaults to investment insights)")
	return cmd
}

// savedUpload describes an upload written to the uploads directory.
type savedUpload struct {
	ID       string
	Path     string
	FileName string
	Query    string
}

// saveUpload validates and stores the uploaded PDF and resolves the
// query. On failure it writes the error response and returns ok=false;
// nothing is left on disk.
func saveUpload(w http.ResponseWriter, r *http.Request, id string) (savedUpload, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return savedUpload{}, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A PDF file is required.")
		return savedUpload{}, false
	}
	defer file.Close()

	if header.Filename == "" || !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "A PDF file is required.")
		return savedUpload{}, false
	}

	homeDir := svcctx.HomeFrom(r.Context())
	if homeDir == nil {
		writeError(w, http.StatusServiceUnavailable, "home directory not initialized")
		return savedUpload{}, false
	}

	path := homeDir.UploadPath(id)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return savedUpload{}, false
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return savedUpload{}, false
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save file: %v", err))
		return savedUpload{}, false
	}

	return savedUpload{
		ID:       id,
		Path:     path,
		FileName: header.Filename,
		Query:    resolveQuery(r),
	}, true
}

// resolveQuery returns the trimmed query form field, falling back to
// the configured default for blank input.
func resolveQuery(r *http.Request) string {
	query := strings.TrimSpace(r.FormValue("query"))
	if query != "" {
		return query
	}
	if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil {
		if def := strings.TrimSpace(cm.Get().DefaultQuery); def != "" {
			return def
		}
	}
	return fallbackQuery
}

// errIsNotFound reports whether err wraps store.ErrNotFound.
func errIsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
