// Package testutil holds shared helpers for exercising the pipeline and
// HTTP layer without poppler or a live OCR backend.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/foliate/internal/render"
)

// StubRenderer implements render.Source with synthetic page images. Each
// page's data encodes its index so tests can assert which page an OCR call
// received.
type StubRenderer struct {
	// NumPages is returned by PageCount when PageCountErr is nil.
	NumPages int
	// PageCountErr, when set, makes PageCount fail.
	PageCountErr error
	// FailStreamAt, when > 0, aborts the page stream with an error after
	// emitting that many pages.
	FailStreamAt int
}

func (s *StubRenderer) PageCount(path string) (int, error) {
	if s.PageCountErr != nil {
		return 0, s.PageCountErr
	}
	return s.NumPages, nil
}

func (s *StubRenderer) Pages(ctx context.Context, path string, opts render.Options) <-chan render.Result {
	out := make(chan render.Result)
	go func() {
		defer close(out)
		for i := 0; i < s.NumPages; i++ {
			if s.FailStreamAt > 0 && i >= s.FailStreamAt {
				out <- render.Result{Err: fmt.Errorf("render aborted at page %d", i)}
				return
			}
			select {
			case out <- render.Result{Page: render.Page{Index: i, Data: PageData(i)}}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// PageData is the synthetic image payload for a page index.
func PageData(index int) []byte {
	return []byte(fmt.Sprintf("page-image-%d", index))
}

// PageIndex recovers the index from a PageData payload, or -1.
func PageIndex(data []byte) int {
	var n int
	if _, err := fmt.Sscanf(string(data), "page-image-%d", &n); err != nil {
		return -1
	}
	return n
}

// MinimalPDF returns a syntactically valid single-page PDF. The xref table
// offsets are computed at write time so the file parses cleanly.
func MinimalPDF() []byte {
	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		buf.WriteString(obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}

// WritePDF drops a minimal PDF at path, creating parent directories.
func WritePDF(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, MinimalPDF(), 0o644); err != nil {
		t.Fatal(err)
	}
}
