package endpoints

import (
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// ListJobsResponse is the response for the job listing endpoint.
type ListJobsResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

var _ api.Endpoint = (*ListJobsEndpoint)(nil)

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List all known conversion jobs, newest first
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	ListJobsResponse
//	@Router			/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.JobsFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry not initialized")
		return
	}

	all := registry.AllJobs()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })

	resp := ListJobsResponse{Jobs: make([]JobStatusResponse, 0, len(all))}
	for _, job := range all {
		resp.Jobs = append(resp.Jobs, statusResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), "/api/jobs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
