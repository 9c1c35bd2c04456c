package endpoints

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/api"
	"github.com/finalyzer/finalyzer/internal/svcctx"
)

// AnalyzeSyncResponse is the blocking analysis result.
type AnalyzeSyncResponse struct {
	Status        string `json:"status"`
	Query         string `json:"query"`
	Analysis      string `json:"analysis"`
	FileProcessed string `json:"file_processed"`
}

// AnalyzeSyncEndpoint handles POST /api/analyze/sync: run the analysis
// in the request and return the result. No job record is created.
type AnalyzeSyncEndpoint struct{}

var _ api.Endpoint = (*AnalyzeSyncEndpoint)(nil)

func (e *AnalyzeSyncEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/analyze/sync", e.handler
}

func (e *AnalyzeSyncEndpoint) RequiresInit() bool { return true }

func (e *AnalyzeSyncEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	upload, ok := saveUpload(w, r, uuid.NewString())
	if !ok {
		return
	}

	processor := svcctx.ProcessorFrom(r.Context())
	if processor == nil {
		writeError(w, http.StatusServiceUnavailable, "processor not initialized")
		return
	}

	// RunInline removes the upload on every path.
	analysis, err := processor.RunInline(r.Context(), upload.Query, upload.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing document: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeSyncResponse{
		Status:        "success",
		Query:         upload.Query,
		Analysis:      analysis,
		FileProcessed: upload.FileName,
	})
}

func (e *AnalyzeSyncEndpoint) Command(getServerURL func() string) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "analyze-sync <file.pdf>",
		Short: "Analyze a document and wait for the result",
		Long:  "Upload a PDF and block until the analysis is ready. Use for small files when you can wait.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{}
			if query != "" {
				fields["query"] = query
			}
			var resp AnalyzeSyncResponse
			if err := client.PostDocument(cmd.Context(), "/api/analyze/sync", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "analysis question (defaults to investment insights)")
	return cmd
}
