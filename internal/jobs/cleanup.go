package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/foliate/internal/config"
	"github.com/jackzampolin/foliate/internal/events"
)

// Cleaner periodically removes expired jobs and their artifacts.
//
// Two TTLs apply, both measured from job creation: after the PDF TTL the
// uploaded source is deleted to relieve disk pressure; after the job TTL a
// terminal job is removed entirely, including its emitter. Jobs that are
// still processing or assembling are never touched.
type Cleaner struct {
	registry *Registry
	events   *events.Registry
	config   ConfigSource
	logger   *slog.Logger
}

// ConfigSource yields the current configuration. Satisfied by *config.Manager.
type ConfigSource interface {
	Get() *config.Config
}

// NewCleaner creates a cleaner over the given registries.
func NewCleaner(registry *Registry, eventRegistry *events.Registry, cfg ConfigSource, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		registry: registry,
		events:   eventRegistry,
		config:   cfg,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.config.Get().CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(time.Now())
		}
	}
}

// Sweep applies both TTLs to every known job once.
func (c *Cleaner) Sweep(now time.Time) {
	cfg := c.config.Get()
	jobTTL := cfg.JobTTL()
	pdfTTL := cfg.PDFTTL()
	dataDir := c.registry.DataDir()

	for _, job := range c.registry.AllJobs() {
		age := job.Age(now)

		if job.Status.Terminal() && age > jobTTL {
			if err := os.RemoveAll(job.Dir(dataDir)); err != nil {
				c.logger.Error("failed to remove job directory", "job", job.ID, "error", err)
				continue
			}
			c.registry.Delete(job.ID)
			c.events.Remove(job.ID)
			c.logger.Info("cleaned up job", "job", job.ID, "age_hours", int(age.Hours()))
			continue
		}

		// The source PDF goes earlier than the job itself, regardless of
		// status: the renderer consumes it up front, so only a later retry
		// can miss it (surfaced to clients as 410).
		if age > pdfTTL {
			pdfPath := job.PDFPath(dataDir)
			if _, err := os.Stat(pdfPath); err == nil {
				if err := os.Remove(pdfPath); err != nil {
					c.logger.Error("failed to remove source PDF", "job", job.ID, "error", err)
					continue
				}
				c.logger.Info("deleted source PDF", "job", job.ID)
			}
		}
	}
}
