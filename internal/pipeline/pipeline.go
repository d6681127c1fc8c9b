// Package pipeline drives a job through its full lifecycle: render pages,
// OCR them with bounded concurrency, checkpoint per-page results, and
// assemble the final EPUB.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/foliate/internal/config"
	"github.com/jackzampolin/foliate/internal/epub"
	"github.com/jackzampolin/foliate/internal/events"
	"github.com/jackzampolin/foliate/internal/jobs"
	"github.com/jackzampolin/foliate/internal/ocr"
	"github.com/jackzampolin/foliate/internal/render"
)

// SaveFunc persists a job snapshot; the pipeline calls it after every state
// change worth surviving a crash.
type SaveFunc func(*jobs.Job) error

// Pipeline holds the collaborators shared by all runs.
type Pipeline struct {
	OCR      ocr.Client
	Renderer render.Source
	Config   jobs.ConfigSource
	Logger   *slog.Logger
}

// New creates a pipeline.
func New(ocrClient ocr.Client, renderer render.Source, cfg jobs.ConfigSource, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		OCR:      ocrClient,
		Renderer: renderer,
		Config:   cfg,
		Logger:   logger,
	}
}

// RunOptions modify a single run.
type RunOptions struct {
	// PagesToProcess, when non-nil, restricts the run to these page
	// indices; all other pages keep their current state. Used by retry.
	PagesToProcess []int
}

// Run executes the pipeline for one job. The job is mutated in place; the
// pipeline is its sole writer until Run returns. The emitter receives the
// job's event stream and is closed on exit.
//
// Per-page OCR failures are recorded on the page and never fail the job;
// only setup and assembly errors are fatal.
func (p *Pipeline) Run(ctx context.Context, job *jobs.Job, dataDir string, emitter *events.Emitter, save SaveFunc, opts RunOptions) {
	logger := p.Logger.With("job", job.ID)
	cfg := p.Config.Get()

	now := unixSeconds()
	job.Status = jobs.StatusProcessing
	job.StartedAt = &now
	p.save(save, job, logger)

	emitter.Emit("job.started", map[string]any{
		"job_id":      job.ID,
		"total_pages": job.TotalPages,
		"status":      string(jobs.StatusProcessing),
	})

	if err := p.run(ctx, job, dataDir, emitter, save, cfg, opts, logger); err != nil {
		logger.Error("pipeline failed", "error", err)
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
		completed := unixSeconds()
		job.CompletedAt = &completed
		p.save(save, job, logger)
		emitter.Emit("job.failed", map[string]any{"error": err.Error()})
	}

	emitter.Close()
}

func (p *Pipeline) run(ctx context.Context, job *jobs.Job, dataDir string, emitter *events.Emitter, save SaveFunc, cfg *config.Config, opts RunOptions, logger *slog.Logger) error {
	pdfPath := job.PDFPath(dataDir)

	// Setup failures (unreadable PDF) are fatal before any page work.
	if _, err := p.Renderer.PageCount(pdfPath); err != nil {
		return fmt.Errorf("could not open PDF: %w", err)
	}

	var filter map[int]bool
	if opts.PagesToProcess != nil {
		filter = make(map[int]bool, len(opts.PagesToProcess))
		for _, n := range opts.PagesToProcess {
			filter[n] = true
		}
	}

	queueSize := cfg.Pipeline.QueueSize
	if queueSize <= 0 {
		queueSize = 8
	}
	workers := cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 2
	}

	queue := make(chan render.Page, queueSize)

	// Producer: pull rendered pages and feed the bounded queue. Closing
	// the queue is the sentinel for worker shutdown; render errors are
	// logged and end the stream early so workers can drain and exit.
	go func() {
		defer close(queue)

		renderOpts := render.Options{
			DPI:          cfg.Render.DPI,
			JPEGQuality:  cfg.Render.JPEGQuality,
			MaxDimension: cfg.Render.MaxDimension,
		}
		for res := range p.Renderer.Pages(ctx, pdfPath, renderOpts) {
			if res.Err != nil {
				logger.Error("renderer failed", "error", res.Err)
				return
			}
			if filter != nil && !filter[res.Page.Index] {
				continue
			}
			select {
			case queue <- res.Page:
			case <-ctx.Done():
				return
			}
		}
	}()

	// The permit keeps the OCR parallelism cap explicit even if the pool
	// composition changes.
	permits := make(chan struct{}, workers)

	var mu sync.Mutex // guards job mutations and saves across workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range queue {
				permits <- struct{}{}
				p.processPage(ctx, job, dataDir, emitter, save, cfg, page, &mu, logger)
				<-permits
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("processing interrupted: %w", err)
	}

	// Assembly phase.
	job.Status = jobs.StatusAssembling
	p.save(save, job, logger)
	emitter.Emit("job.assembling", map[string]any{
		"pages_succeeded": job.PagesSucceeded(),
		"pages_failed":    job.PagesFailed(),
	})

	pageTexts := make(map[int]string)
	for n, pr := range job.Pages {
		if pr.Status == jobs.PageStatusSuccess {
			pageTexts[n] = pr.Text
		}
	}

	builder := epub.NewBuilder(pageTexts, job.TotalPages, epub.Options{
		Title:           titleFromFilename(job.PDFFilename),
		Language:        job.Language,
		PagesPerChapter: cfg.Pipeline.PagesPerChapter,
	})
	if err := builder.Build(job.EPUBPath(dataDir)); err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	completed := unixSeconds()
	job.Status = jobs.StatusCompleted
	job.CompletedAt = &completed
	p.save(save, job, logger)

	started := job.CreatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	emitter.Emit("job.completed", map[string]any{
		"download_url":     fmt.Sprintf("/api/jobs/%s/result", job.ID),
		"duration_seconds": roundTenth(completed - started),
		"pages_succeeded":  job.PagesSucceeded(),
		"failed_pages":     job.FailedPageNumbers(),
	})

	return nil
}

// processPage runs the full per-page worker logic for one rendered page.
func (p *Pipeline) processPage(ctx context.Context, job *jobs.Job, dataDir string, emitter *events.Emitter, save SaveFunc, cfg *config.Config, page render.Page, mu *sync.Mutex, logger *slog.Logger) {
	mu.Lock()
	job.Pages[page.Index] = &jobs.PageResult{Page: page.Index, Status: jobs.PageStatusProcessing}
	mu.Unlock()

	prompt := job.OCRPrompt
	if prompt == "" {
		prompt = cfg.OCR.DefaultPrompt
	}

	text, err := p.OCR.OCR(ctx, page.Data, prompt)

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		logger.Error("OCR failed for page", "page", page.Index, "error", err)
		job.Pages[page.Index].Status = jobs.PageStatusFailed
		job.Pages[page.Index].Error = err.Error()

		emitter.Emit("page.completed", map[string]any{
			"page":        page.Index,
			"total_pages": job.TotalPages,
			"status":      string(jobs.PageStatusFailed),
			"error":       err.Error(),
		})
		p.save(save, job, logger)
		return
	}

	// Checkpoint the page text before announcing it: a subscriber seeing
	// page.completed may assume the checkpoint is durable.
	p.checkpoint(job, dataDir, page.Index, text, logger)

	job.Pages[page.Index].Status = jobs.PageStatusSuccess
	job.Pages[page.Index].Text = text

	emitter.Emit("page.completed", map[string]any{
		"page":         page.Index,
		"total_pages":  job.TotalPages,
		"status":       string(jobs.PageStatusSuccess),
		"text_preview": preview(text, 200),
	})
	p.save(save, job, logger)
}

// checkpoint writes the per-page text file. Failures are logged only; the
// in-memory record stays correct and the on-disk copy may lag.
func (p *Pipeline) checkpoint(job *jobs.Job, dataDir string, page int, text string, logger *slog.Logger) {
	path := job.PageTextPath(dataDir, page)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Error("failed to create pages directory", "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		logger.Error("failed to write page checkpoint", "page", page, "error", err)
	}
}

func (p *Pipeline) save(save SaveFunc, job *jobs.Job, logger *slog.Logger) {
	if err := save(job); err != nil {
		logger.Error("failed to save job", "error", err)
	}
}

// titleFromFilename strips the extension from the uploaded file name.
func titleFromFilename(filename string) string {
	if filename == "" {
		return "Converted Book"
	}
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		return "Converted Book"
	}
	return base
}

// preview returns the first n characters of text.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
