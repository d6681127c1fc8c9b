package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/pipeline"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// RetryJobResponse is returned when a retry is admitted.
type RetryJobResponse struct {
	JobID         string `json:"job_id"`
	RetryingPages []int  `json:"retrying_pages"`
}

// RetryJobEndpoint handles POST /api/jobs/{id}/retry. It re-runs OCR for the
// job's failed pages only; successful pages keep their text.
type RetryJobEndpoint struct{}

var _ api.Endpoint = (*RetryJobEndpoint)(nil)

func (e *RetryJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs/{id}/retry", e.handler
}

func (e *RetryJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Retry failed pages
//	@Description	Re-run OCR for a job's failed pages and reassemble the EPUB
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	RetryJobResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		410	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/retry [post]
func (e *RetryJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.JobsFrom(r.Context())
	eventReg := svcctx.EventsFrom(r.Context())
	pl := svcctx.PipelineFrom(r.Context())
	if registry == nil || eventReg == nil || pl == nil {
		writeError(w, http.StatusServiceUnavailable, "server not fully initialized")
		return
	}

	job := registry.Get(r.PathValue("id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if job.Status == jobs.StatusProcessing || job.Status == jobs.StatusAssembling {
		writeError(w, http.StatusBadRequest, "job is still processing")
		return
	}

	failed := job.FailedPageNumbers()
	if len(failed) == 0 {
		writeError(w, http.StatusBadRequest, "job has no failed pages")
		return
	}

	dataDir := registry.DataDir()
	if _, err := os.Stat(job.PDFPath(dataDir)); err != nil {
		writeError(w, http.StatusGone, "source PDF has been cleaned up; re-upload to convert again")
		return
	}

	// Reset the target pages before re-running.
	for _, n := range failed {
		job.Pages[n] = &jobs.PageResult{Page: n, Status: jobs.PageStatusPending}
	}
	job.Status = jobs.StatusPending
	job.Error = ""
	job.CompletedAt = nil
	if err := registry.Save(job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save job: %v", err))
		return
	}

	// The first run's emitter is closed; start a fresh stream for the rerun.
	eventReg.Remove(job.ID)
	emitter := eventReg.GetOrCreate(job.ID)

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("retrying failed pages", "job", job.ID, "pages", failed)
	}

	go pl.Run(context.WithoutCancel(r.Context()), job, dataDir, emitter, registry.Save, pipeline.RunOptions{
		PagesToProcess: failed,
	})

	writeJSON(w, http.StatusOK, RetryJobResponse{JobID: job.ID, RetryingPages: failed})
}

func (e *RetryJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry a job's failed pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RetryJobResponse
			if err := client.Post(cmd.Context(), "/api/jobs/"+args[0]+"/retry", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
