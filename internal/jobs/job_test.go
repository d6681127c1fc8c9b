package jobs

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewJob(t *testing.T) {
	job := NewJob("fa", "", "book.pdf")

	if len(job.ID) != 12 {
		t.Errorf("ID length = %d, want 12", len(job.ID))
	}
	if job.Status != StatusPending {
		t.Errorf("Status = %q, want pending", job.Status)
	}
	if job.PDFFilename != "book.pdf" {
		t.Errorf("PDFFilename = %q", job.PDFFilename)
	}
	if job.CreatedAt == 0 {
		t.Error("CreatedAt not set")
	}

	other := NewJob("fa", "", "book.pdf")
	if other.ID == job.ID {
		t.Error("two jobs share an ID")
	}
}

func TestJob_InitPages(t *testing.T) {
	job := NewJob("en", "", "a.pdf")
	job.InitPages(4)

	if job.TotalPages != 4 {
		t.Fatalf("TotalPages = %d, want 4", job.TotalPages)
	}
	for i := 0; i < 4; i++ {
		p, ok := job.Pages[i]
		if !ok {
			t.Fatalf("page %d missing", i)
		}
		if p.Page != i || p.Status != PageStatusPending {
			t.Errorf("page %d = %+v, want pending with matching index", i, p)
		}
	}
}

func TestJob_DerivedCounts(t *testing.T) {
	job := NewJob("fa", "", "a.pdf")
	job.InitPages(5)

	job.Pages[0].Status = PageStatusSuccess
	job.Pages[3].Status = PageStatusSuccess
	job.Pages[4].Status = PageStatusFailed
	job.Pages[1].Status = PageStatusFailed

	if got := job.PagesSucceeded(); got != 2 {
		t.Errorf("PagesSucceeded() = %d, want 2", got)
	}
	if got := job.PagesFailed(); got != 2 {
		t.Errorf("PagesFailed() = %d, want 2", got)
	}
	if got := job.PagesCompleted(); got != 4 {
		t.Errorf("PagesCompleted() = %d, want 4", got)
	}
	if job.PagesSucceeded()+job.PagesFailed() > job.TotalPages {
		t.Error("succeeded+failed exceeds total_pages")
	}

	failed := job.FailedPageNumbers()
	if len(failed) != 2 || failed[0] != 1 || failed[1] != 4 {
		t.Errorf("FailedPageNumbers() = %v, want [1 4]", failed)
	}
}

func TestJob_Clone(t *testing.T) {
	job := NewJob("ar", "custom prompt", "b.pdf")
	job.InitPages(2)
	started := 123.5
	job.StartedAt = &started

	clone := job.Clone()
	clone.Pages[0].Status = PageStatusSuccess
	clone.Pages[0].Text = "mutated"
	*clone.StartedAt = 999

	if job.Pages[0].Status != PageStatusPending || job.Pages[0].Text != "" {
		t.Error("mutating clone pages affected original")
	}
	if *job.StartedAt != 123.5 {
		t.Error("mutating clone timestamp affected original")
	}
}

func TestJob_Paths(t *testing.T) {
	job := &Job{ID: "abc123"}
	data := "/tmp/data"

	if got, want := job.Dir(data), filepath.Join(data, "jobs", "abc123"); got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
	if got, want := job.PDFPath(data), filepath.Join(data, "jobs", "abc123", "input.pdf"); got != want {
		t.Errorf("PDFPath = %q, want %q", got, want)
	}
	if got, want := job.EPUBPath(data), filepath.Join(data, "jobs", "abc123", "output.epub"); got != want {
		t.Errorf("EPUBPath = %q, want %q", got, want)
	}
	if got, want := job.PageTextPath(data, 7), filepath.Join(data, "jobs", "abc123", "pages", "00007.txt"); got != want {
		t.Errorf("PageTextPath = %q, want %q", got, want)
	}
}

func TestJob_Age(t *testing.T) {
	job := NewJob("fa", "", "a.pdf")
	job.CreatedAt -= 3600 // one hour ago

	age := job.Age(time.Now())
	if age < 59*time.Minute || age > 61*time.Minute {
		t.Errorf("Age() = %v, want ~1h", age)
	}
}

func TestStatus_Terminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusAssembling: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
