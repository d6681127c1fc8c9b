package jobs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Registry is the in-memory source of truth for jobs during the process
// lifetime, with JSON snapshots on disk for crash recovery.
//
// Save is the commit point for a state transition: it installs a deep copy
// in the registry and rewrites job.json. Readers get independent copies, so
// the pipeline can keep mutating its own Job instance between saves.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	dataDir string
	logger  *slog.Logger
}

// NewRegistry creates a registry rooted at dataDir.
func NewRegistry(dataDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:    make(map[string]*Job),
		dataDir: dataDir,
		logger:  logger,
	}
}

// DataDir returns the registry's root data directory.
func (r *Registry) DataDir() string {
	return r.dataDir
}

// Create registers a new job, creates its directory, and persists it.
func (r *Registry) Create(job *Job) error {
	if err := os.MkdirAll(job.Dir(r.dataDir), 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	return r.Save(job)
}

// Get returns a deep copy of a job, or nil if unknown.
func (r *Registry) Get(jobID string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil
	}
	return job.Clone()
}

// Save installs a snapshot of the job and rewrites job.json. The file is
// written to a temp file in the same directory and renamed, so a crash
// leaves either the old or the new record, never a torn one.
func (r *Registry) Save(job *Job) error {
	snapshot := job.Clone()

	r.mu.Lock()
	r.jobs[job.ID] = snapshot
	r.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	metaPath := job.MetaPath(r.dataDir)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(metaPath), "job-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write job %s: %w", job.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), metaPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", metaPath, err)
	}
	return nil
}

// Delete removes the in-memory entry. Files are left for the cleanup loop.
func (r *Registry) Delete(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// AllJobs returns deep copies of all current jobs.
func (r *Registry) AllJobs() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	return out
}

// LoadFromDisk walks <data>/jobs/*/job.json and installs every record that
// parses. Corrupt records are logged and skipped. Called once at startup.
func (r *Registry) LoadFromDisk() {
	jobsDir := filepath.Join(r.dataDir, "jobs")
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Error("failed to read jobs directory", "dir", jobsDir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(jobsDir, entry.Name(), "job.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			r.logger.Warn("skipping corrupt job record", "path", metaPath, "error", err)
			continue
		}
		if job.Pages == nil {
			job.Pages = make(map[int]*PageResult)
		}

		r.mu.Lock()
		r.jobs[job.ID] = &job
		r.mu.Unlock()
		r.logger.Info("loaded job from disk", "job", job.ID, "status", job.Status)
	}
}
