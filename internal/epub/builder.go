// Package epub provides EPUB 3 generation from OCR page texts.
//
// The builder is a pure transform: identical inputs produce identical
// archives. Chapters group consecutive pages; failed or missing pages get a
// styled placeholder so the reader can see where recognition fell short.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Options configure an assembly run.
type Options struct {
	// Title is the book title metadata.
	Title string
	// Language is the ISO 639-1 content language (fa, ar, en).
	// Unknown languages fall back to fa.
	Language string
	// PagesPerChapter is how many consecutive pages form one chapter.
	PagesPerChapter int
}

// chapter is a consecutive page range [start, end).
type chapter struct {
	num        int // 1-based
	start, end int
}

func (c chapter) id() string {
	return fmt.Sprintf("chapter_%03d", c.num)
}

func (c chapter) title() string {
	return fmt.Sprintf("Pages %d–%d", c.start+1, c.end)
}

// Builder creates EPUB 3 files from page texts.
type Builder struct {
	pages      map[int]string
	totalPages int
	opts       Options
	lang       langConfig
	chapters   []chapter
}

// NewBuilder creates a builder over the successful page texts. Pages absent
// from the map are rendered as placeholders.
func NewBuilder(pages map[int]string, totalPages int, opts Options) *Builder {
	if opts.Title == "" {
		opts.Title = "Converted Book"
	}
	if opts.PagesPerChapter <= 0 {
		opts.PagesPerChapter = 20
	}

	var chapters []chapter
	for start := 0; start < totalPages; start += opts.PagesPerChapter {
		end := start + opts.PagesPerChapter
		if end > totalPages {
			end = totalPages
		}
		chapters = append(chapters, chapter{
			num:   len(chapters) + 1,
			start: start,
			end:   end,
		})
	}

	return &Builder{
		pages:      pages,
		totalPages: totalPages,
		opts:       opts,
		lang:       languageConfig(opts.Language),
		chapters:   chapters,
	}
}

// ChapterCount returns how many chapters the book will contain.
func (b *Builder) ChapterCount() int {
	return len(b.chapters)
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.WriteTo(f)
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	zw := zip.NewWriter(w)

	// mimetype must be first and uncompressed
	if err := b.writeMimetype(zw); err != nil {
		return err
	}
	if err := writeFile(zw, "META-INF/container.xml", containerXML); err != nil {
		return err
	}
	if err := writeFile(zw, "OEBPS/content.opf", b.generatePackage()); err != nil {
		return err
	}
	if err := writeFile(zw, "OEBPS/nav.xhtml", b.generateNavigation()); err != nil {
		return err
	}
	if err := writeFile(zw, "OEBPS/toc.ncx", b.generateNCX()); err != nil {
		return err
	}
	if err := writeFile(zw, "OEBPS/styles/style.css", b.generateStylesheet()); err != nil {
		return err
	}

	for _, ch := range b.chapters {
		path := fmt.Sprintf("OEBPS/chapters/%s.xhtml", ch.id())
		if err := writeFile(zw, path, b.generateChapterXHTML(ch)); err != nil {
			return fmt.Errorf("failed to write chapter %s: %w", ch.id(), err)
		}
	}

	return zw.Close()
}

// writeMimetype writes the mimetype file with Store method (no compression)
// as required by the EPUB spec.
func (b *Builder) writeMimetype(zw *zip.Writer) error {
	header := &zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create mimetype entry: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

func writeFile(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write([]byte(content))
	return err
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`
