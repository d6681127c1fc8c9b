package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// JobResultEndpoint handles GET /api/jobs/{id}/result, the EPUB download.
type JobResultEndpoint struct{}

var _ api.Endpoint = (*JobResultEndpoint)(nil)

func (e *JobResultEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{id}/result", e.handler
}

func (e *JobResultEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download the converted EPUB
//	@Description	Returns the assembled EPUB for a completed job
//	@Tags			jobs
//	@Produce		application/epub+zip
//	@Param			id	path	string	true	"Job ID"
//	@Success		200
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/jobs/{id}/result [get]
func (e *JobResultEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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
	if job.Status != jobs.StatusCompleted {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("job is %s, not completed", job.Status))
		return
	}

	epubPath := job.EPUBPath(registry.DataDir())
	if _, err := os.Stat(epubPath); err != nil {
		writeError(w, http.StatusNotFound, "result no longer available")
		return
	}

	w.Header().Set("Content-Type", "application/epub+zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(job.PDFFilename)))
	http.ServeFile(w, r, epubPath)
}

// downloadName derives the suggested EPUB filename from the upload name.
func downloadName(pdfFilename string) string {
	base := filepath.Base(pdfFilename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "book"
	}
	return stem + ".epub"
}

func (e *JobResultEndpoint) Command(getServerURL func() string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Download a completed job's EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			dest := output
			if dest == "" {
				dest = args[0] + ".epub"
			}
			name, err := client.Download(cmd.Context(), "/api/jobs/"+args[0]+"/result", dest)
			if err != nil {
				return err
			}
			if output == "" && name != "" && name != dest {
				if renameErr := os.Rename(dest, name); renameErr == nil {
					dest = name
				}
			}
			fmt.Printf("Saved %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "file", "f", "", "destination path (default: server-suggested name)")
	return cmd
}
