// Package render rasterizes PDF pages into JPEG images.
//
// Pages are rendered one at a time with pdftoppm (poppler-utils), which
// renders the full page rather than extracting embedded image objects, so
// output order always matches page order.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/image/draw"
)

// Options control rasterization output.
type Options struct {
	// DPI is the rasterization resolution.
	DPI int
	// JPEGQuality is the JPEG compression quality (1-100).
	JPEGQuality int
	// MaxDimension downscales the image when either side exceeds it,
	// preserving aspect ratio. Zero disables downscaling.
	MaxDimension int
}

// Page is one rendered page.
type Page struct {
	// Index is the 0-based page index.
	Index int
	// Data is the compressed JPEG image.
	Data []byte
}

// Result carries either a rendered page or a stream error.
type Result struct {
	Page Page
	Err  error
}

// Source produces page images from a PDF.
type Source interface {
	// PageCount returns the number of pages in the PDF.
	PageCount(path string) (int, error)

	// Pages lazily renders all pages in order. The returned channel is
	// unbuffered: the producer does not advance until the consumer pulls.
	// On error a single Result with Err set is sent and the channel is
	// closed; a clean end closes the channel without an error.
	Pages(ctx context.Context, path string, opts Options) <-chan Result
}

// PopplerSource renders pages by shelling out to pdftoppm. Page counting
// uses pdfcpu, which also serves as upload validation: a file pdfcpu cannot
// parse is rejected before a job ever starts.
type PopplerSource struct {
	logger *slog.Logger
}

var _ Source = (*PopplerSource)(nil)

// NewPopplerSource creates a PopplerSource.
func NewPopplerSource(logger *slog.Logger) *PopplerSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PopplerSource{logger: logger}
}

// PageCount implements Source.
func (s *PopplerSource) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count, err := pdfcpu.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// Pages implements Source.
func (s *PopplerSource) Pages(ctx context.Context, path string, opts Options) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		total, err := s.PageCount(path)
		if err != nil {
			s.send(ctx, out, Result{Err: err})
			return
		}

		for i := 0; i < total; i++ {
			data, err := s.renderPage(ctx, path, i, opts)
			if err != nil {
				s.send(ctx, out, Result{Err: fmt.Errorf("failed to render page %d: %w", i, err)})
				return
			}
			if !s.send(ctx, out, Result{Page: Page{Index: i, Data: data}}) {
				return
			}
		}
	}()

	return out
}

func (s *PopplerSource) send(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// renderPage rasterizes a single 0-indexed page to JPEG bytes.
func (s *PopplerSource) renderPage(ctx context.Context, path string, page int, opts Options) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "foliate-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// pdftoppm pages are 1-indexed.
	pageStr := fmt.Sprintf("%d", page+1)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", opts.JPEGQuality),
		"-r", fmt.Sprintf("%d", opts.DPI),
		"-f", pageStr,
		"-l", pageStr,
		"-singlefile",
		path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered image: %w", err)
	}

	if opts.MaxDimension > 0 {
		data, err = downscale(data, opts.MaxDimension, opts.JPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("failed to downscale page: %w", err)
		}
	}
	return data, nil
}

// downscale re-encodes a JPEG so that neither dimension exceeds maxDim.
// Images already within bounds pass through untouched.
func downscale(jpegBytes []byte, maxDim, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return jpegBytes, nil
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
