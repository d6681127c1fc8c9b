// Package jobs defines the job model, the durable job registry, and the
// TTL cleanup loop.
package jobs

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAssembling Status = "assembling"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PageStatus is a per-page lifecycle state.
type PageStatus string

const (
	PageStatusPending    PageStatus = "pending"
	PageStatusProcessing PageStatus = "processing"
	PageStatusSuccess    PageStatus = "success"
	PageStatusFailed     PageStatus = "failed"
)

// PageResult is the OCR outcome of a single 0-indexed page.
type PageResult struct {
	Page   int        `json:"page"`
	Status PageStatus `json:"status"`
	Text   string     `json:"text"`
	Error  string     `json:"error,omitempty"`
}

// Job is one PDF-to-EPUB conversion. The pipeline is the sole writer during
// a run; everyone else reads snapshots from the Registry.
type Job struct {
	ID          string              `json:"id"`
	Status      Status              `json:"status"`
	TotalPages  int                 `json:"total_pages"`
	Pages       map[int]*PageResult `json:"pages"`
	Language    string              `json:"language"`
	OCRPrompt   string              `json:"ocr_prompt,omitempty"`
	PDFFilename string              `json:"pdf_filename"`
	CreatedAt   float64             `json:"created_at"`
	StartedAt   *float64            `json:"started_at,omitempty"`
	CompletedAt *float64            `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// NewJob creates a pending job with a fresh ID.
func NewJob(language, ocrPrompt, pdfFilename string) *Job {
	return &Job{
		ID:          strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Status:      StatusPending,
		Pages:       make(map[int]*PageResult),
		Language:    language,
		OCRPrompt:   ocrPrompt,
		PDFFilename: pdfFilename,
		CreatedAt:   float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// InitPages installs pending PageResults for pages [0, totalPages).
func (j *Job) InitPages(totalPages int) {
	j.TotalPages = totalPages
	j.Pages = make(map[int]*PageResult, totalPages)
	for i := 0; i < totalPages; i++ {
		j.Pages[i] = &PageResult{Page: i, Status: PageStatusPending}
	}
}

// PagesSucceeded counts pages with status success.
func (j *Job) PagesSucceeded() int {
	n := 0
	for _, p := range j.Pages {
		if p.Status == PageStatusSuccess {
			n++
		}
	}
	return n
}

// PagesFailed counts pages with status failed.
func (j *Job) PagesFailed() int {
	n := 0
	for _, p := range j.Pages {
		if p.Status == PageStatusFailed {
			n++
		}
	}
	return n
}

// PagesCompleted counts pages that reached a terminal page status.
func (j *Job) PagesCompleted() int {
	return j.PagesSucceeded() + j.PagesFailed()
}

// FailedPageNumbers returns the sorted indices of failed pages.
func (j *Job) FailedPageNumbers() []int {
	nums := make([]int, 0)
	for _, p := range j.Pages {
		if p.Status == PageStatusFailed {
			nums = append(nums, p.Page)
		}
	}
	sort.Ints(nums)
	return nums
}

// Age returns the time elapsed since the job was created.
func (j *Job) Age(now time.Time) time.Duration {
	created := time.Unix(0, int64(j.CreatedAt*float64(time.Second)))
	return now.Sub(created)
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	c.Pages = make(map[int]*PageResult, len(j.Pages))
	for i, p := range j.Pages {
		pc := *p
		c.Pages[i] = &pc
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		c.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// Dir returns the job's directory under the data dir.
func (j *Job) Dir(dataDir string) string {
	return filepath.Join(dataDir, "jobs", j.ID)
}

// PDFPath returns the path of the uploaded source PDF.
func (j *Job) PDFPath(dataDir string) string {
	return filepath.Join(j.Dir(dataDir), "input.pdf")
}

// EPUBPath returns the path of the assembled EPUB.
func (j *Job) EPUBPath(dataDir string) string {
	return filepath.Join(j.Dir(dataDir), "output.epub")
}

// MetaPath returns the path of the serialized job record.
func (j *Job) MetaPath(dataDir string) string {
	return filepath.Join(j.Dir(dataDir), "job.json")
}

// PageTextPath returns the checkpoint path for one page's extracted text.
func (j *Job) PageTextPath(dataDir string, page int) string {
	return filepath.Join(j.Dir(dataDir), "pages", fmt.Sprintf("%05d.txt", page))
}
