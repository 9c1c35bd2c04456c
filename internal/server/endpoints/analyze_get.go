package endpoints

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/internal/store"
	"github.com/finalyzer/finalyzer/internal/svcctx"
)

// JobResponse is the poll response for an analysis job. Analysis is set
// only for COMPLETED jobs, Error only for FAILED ones.
type JobResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Query         string `json:"query"`
	FileProcessed string `json:"file_processed"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	Analysis      string `json:"analysis,omitempty"`
	Error         string `json:"error,omitempty"`
}

func jobResponse(job *store.Job) JobResponse {
	resp := JobResponse{
		JobID:         job.ID,
		Status:        string(job.Status),
		Query:         job.Query,
		FileProcessed: job.FileName,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Status == store.StatusCompleted {
		resp.Analysis = job.Result
	}
	if job.Status == store.StatusFailed {
		resp.Error = job.Error
	}
	return resp
}

// GetAnalysisEndpoint handles GET /api/analyze/{id}.
type GetAnalysisEndpoint struct{}

var _ api.Endpoint = (*GetAnalysisEndpoint)(nil)

func (e *GetAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/analyze/{id}", e.handler
}

func (e *GetAnalysisEndpoint) RequiresInit() bool { return true }

func (e *GetAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	jobStore := svcctx.StoreFrom(r.Context())
	job, err := jobStore.Get(r.Context(), id)
	if err != nil {
		if errIsNotFound(err) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (e *GetAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Get status and result of an analysis job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobResponse
			if err := client.Get(cmd.Context(), "/api/analyze/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
