package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// JobStatusResponse is the full status record for one job.
type JobStatusResponse struct {
	ID             string      `json:"id"`
	Status         jobs.Status `json:"status"`
	TotalPages     int         `json:"total_pages"`
	PagesCompleted int         `json:"pages_completed"`
	PagesSucceeded int         `json:"pages_succeeded"`
	PagesFailed    int         `json:"pages_failed"`
	FailedPages    []int       `json:"failed_pages"`
	PDFFilename    string      `json:"pdf_filename"`
	Language       string      `json:"language"`
	CreatedAt      float64     `json:"created_at"`
	StartedAt      *float64    `json:"started_at,omitempty"`
	CompletedAt    *float64    `json:"completed_at,omitempty"`
	Error          string      `json:"error,omitempty"`
}

func statusResponse(job *jobs.Job) JobStatusResponse {
	return JobStatusResponse{
		ID:             job.ID,
		Status:         job.Status,
		TotalPages:     job.TotalPages,
		PagesCompleted: job.PagesCompleted(),
		PagesSucceeded: job.PagesSucceeded(),
		PagesFailed:    job.PagesFailed(),
		FailedPages:    job.FailedPageNumbers(),
		PDFFilename:    job.PDFFilename,
		Language:       job.Language,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		Error:          job.Error,
	}
}

// GetJobEndpoint handles GET /api/jobs/{id}.
type GetJobEndpoint struct{}

var _ api.Endpoint = (*GetJobEndpoint)(nil)

func (e *GetJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}", e.handler
}

func (e *GetJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get job status
//	@Description	Get the full status record for a conversion job
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	JobStatusResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id} [get]
func (e *GetJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.JobsFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry not initialized")
		return
	}

	job := registry.Get(r.PathValue("id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(job))
}

func (e *GetJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobStatusResponse
			if err := client.Get(cmd.Context(), "/api/jobs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
