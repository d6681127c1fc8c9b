package endpoints

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/foliate/internal/api"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/pipeline"
	"github.com/jackzampolin/foliate/internal/svcctx"
)

// CreateJobResponse is returned when a conversion job is admitted.
type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	TotalPages int    `json:"total_pages"`
}

// CreateJobEndpoint handles POST /api/jobs with a multipart PDF upload.
type CreateJobEndpoint struct{}

var _ api.Endpoint = (*CreateJobEndpoint)(nil)

func (e *CreateJobEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/jobs", e.handler
}

func (e *CreateJobEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a conversion job
//	@Description	Upload a PDF and start OCR conversion to EPUB
//	@Tags			jobs
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"PDF to convert"
//	@Param			language	formData	string	false	"Content language (fa, ar, en)"
//	@Param			ocr_prompt	formData	string	false	"Custom OCR prompt"
//	@Success		200	{object}	CreateJobResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/jobs [post]
func (e *CreateJobEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form with 500MB max memory
	const maxMemory = 500 << 20 // 500MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	fh := files[0]

	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", fh.Filename))
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = "fa"
	}
	ocrPrompt := r.FormValue("ocr_prompt")

	registry := svcctx.JobsFrom(r.Context())
	eventReg := svcctx.EventsFrom(r.Context())
	pl := svcctx.PipelineFrom(r.Context())
	if registry == nil || eventReg == nil || pl == nil {
		writeError(w, http.StatusServiceUnavailable, "server not fully initialized")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	job := jobs.NewJob(language, ocrPrompt, fh.Filename)

	// Stage the upload into the job directory before admitting the job.
	dataDir := registry.DataDir()
	pdfPath := job.PDFPath(dataDir)
	if err := saveUpload(fh, pdfPath); err != nil {
		os.RemoveAll(job.Dir(dataDir))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store upload: %v", err))
		return
	}

	totalPages, err := pl.Renderer.PageCount(pdfPath)
	if err != nil {
		os.RemoveAll(job.Dir(dataDir))
		writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read PDF: %v", err))
		return
	}
	job.InitPages(totalPages)

	if err := registry.Create(job); err != nil {
		os.RemoveAll(job.Dir(dataDir))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create job: %v", err))
		return
	}

	emitter := eventReg.GetOrCreate(job.ID)

	if logger != nil {
		logger.Info("job admitted", "job", job.ID, "pages", totalPages, "file", fh.Filename)
	}

	// The run outlives the upload request.
	go pl.Run(context.WithoutCancel(r.Context()), job, dataDir, emitter, registry.Save, pipeline.RunOptions{})

	writeJSON(w, http.StatusOK, CreateJobResponse{JobID: job.ID, TotalPages: totalPages})
}

// saveUpload copies a multipart file to destPath, creating parent dirs.
func saveUpload(fh *multipart.FileHeader, destPath string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (e *CreateJobEndpoint) Command(getServerURL func() string) *cobra.Command {
	var language, prompt string
	cmd := &cobra.Command{
		Use:   "create <pdf-file>",
		Short: "Upload a PDF and start a conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CreateJobResponse
			fields := map[string]string{
				"language":   language,
				"ocr_prompt": prompt,
			}
			if err := client.Upload(cmd.Context(), "/api/jobs", "file", args[0], fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&language, "language", "fa", "content language (fa, ar, en)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "custom OCR prompt")
	return cmd
}
