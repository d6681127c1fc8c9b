package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func buildToMemory(t *testing.T, b *Builder) map[string]string {
	t.Helper()
	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files
}

func TestBuilder_ValidArchive(t *testing.T) {
	b := NewBuilder(map[int]string{0: "Hello world.", 1: "Second page."}, 2, Options{
		Title:           "My Book",
		Language:        "en",
		PagesPerChapter: 20,
	})

	files := buildToMemory(t, b)

	for _, name := range []string{
		"mimetype",
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/nav.xhtml",
		"OEBPS/toc.ncx",
		"OEBPS/styles/style.css",
		"OEBPS/chapters/chapter_001.xhtml",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("archive missing %s", name)
		}
	}

	if files["mimetype"] != "application/epub+zip" {
		t.Errorf("mimetype = %q", files["mimetype"])
	}
	if !strings.Contains(files["OEBPS/content.opf"], "<dc:title>My Book</dc:title>") {
		t.Error("package document missing title")
	}
	if !strings.Contains(files["OEBPS/chapters/chapter_001.xhtml"], "<p>Hello world.</p>") {
		t.Error("chapter missing page text")
	}
}

func TestBuilder_MimetypeFirstAndStored(t *testing.T) {
	b := NewBuilder(nil, 1, Options{Title: "T"})
	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatal("mimetype is not the first archive entry")
	}
	if zr.File[0].Method != zip.Store {
		t.Error("mimetype entry is compressed")
	}
}

func TestBuilder_ChapterCount(t *testing.T) {
	tests := []struct {
		total, perChapter, want int
	}{
		{total: 3, perChapter: 20, want: 1},
		{total: 20, perChapter: 20, want: 1},
		{total: 21, perChapter: 20, want: 2},
		{total: 45, perChapter: 20, want: 3},
		{total: 0, perChapter: 20, want: 0},
	}

	for _, tc := range tests {
		// Chapter count depends only on the page grid, not on which
		// pages actually produced text.
		b := NewBuilder(nil, tc.total, Options{PagesPerChapter: tc.perChapter})
		if got := b.ChapterCount(); got != tc.want {
			t.Errorf("ChapterCount(total=%d, per=%d) = %d, want %d",
				tc.total, tc.perChapter, got, tc.want)
		}
	}
}

func TestBuilder_MissingPagesGetPlaceholders(t *testing.T) {
	b := NewBuilder(map[int]string{1: "only page two"}, 3, Options{Language: "en"})
	files := buildToMemory(t, b)

	ch := files["OEBPS/chapters/chapter_001.xhtml"]
	if !strings.Contains(ch, "[Page 1: OCR failed]") {
		t.Error("missing placeholder for page 1")
	}
	if !strings.Contains(ch, "[Page 3: OCR failed]") {
		t.Error("missing placeholder for page 3")
	}
	if !strings.Contains(ch, "<p>only page two</p>") {
		t.Error("missing real page text")
	}
	if got := strings.Count(ch, "failed-page"); got != 2 {
		t.Errorf("placeholder count = %d, want 2", got)
	}
}

func TestBuilder_EscapesInput(t *testing.T) {
	b := NewBuilder(map[int]string{0: `<script>alert("x")</script> & more`}, 1, Options{
		Title:    `Title <with> "quotes" & 'apostrophes'`,
		Language: "en",
	})
	files := buildToMemory(t, b)

	ch := files["OEBPS/chapters/chapter_001.xhtml"]
	if strings.Contains(ch, "<script>") {
		t.Error("unescaped markup leaked into chapter")
	}
	if !strings.Contains(ch, "&lt;script&gt;") || !strings.Contains(ch, "&amp; more") {
		t.Error("text not XML-escaped")
	}
	if !strings.Contains(files["OEBPS/content.opf"], "Title &lt;with&gt; &quot;quotes&quot; &amp; &apos;apostrophes&apos;") {
		t.Error("title not escaped in package document")
	}
}

func TestBuilder_ParagraphSplitting(t *testing.T) {
	text := "First paragraph\ncontinues here.\n\nSecond paragraph."
	b := NewBuilder(map[int]string{0: text}, 1, Options{Language: "en"})
	files := buildToMemory(t, b)

	ch := files["OEBPS/chapters/chapter_001.xhtml"]
	if !strings.Contains(ch, "<p>First paragraph<br/>continues here.</p>") {
		t.Errorf("first paragraph wrong:\n%s", ch)
	}
	if !strings.Contains(ch, "<p>Second paragraph.</p>") {
		t.Error("second paragraph missing")
	}
}

func TestBuilder_LanguageDirection(t *testing.T) {
	tests := []struct {
		lang     string
		wantDir  string
		wantCode string
	}{
		{lang: "fa", wantDir: "rtl", wantCode: "fa"},
		{lang: "ar", wantDir: "rtl", wantCode: "ar"},
		{lang: "en", wantDir: "ltr", wantCode: "en"},
		{lang: "zz", wantDir: "rtl", wantCode: "fa"}, // unknown falls back to fa
		{lang: "", wantDir: "rtl", wantCode: "fa"},
	}

	for _, tc := range tests {
		t.Run("lang_"+tc.lang, func(t *testing.T) {
			b := NewBuilder(map[int]string{0: "text"}, 1, Options{Language: tc.lang})
			files := buildToMemory(t, b)

			opf := files["OEBPS/content.opf"]
			if !strings.Contains(opf, "<dc:language>"+tc.wantCode+"</dc:language>") {
				t.Errorf("package language not %q", tc.wantCode)
			}
			ch := files["OEBPS/chapters/chapter_001.xhtml"]
			if !strings.Contains(ch, `dir="`+tc.wantDir+`"`) {
				t.Errorf("chapter direction not %q", tc.wantDir)
			}
			css := files["OEBPS/styles/style.css"]
			if !strings.Contains(css, "direction: "+tc.wantDir) {
				t.Errorf("stylesheet direction not %q", tc.wantDir)
			}
		})
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	pages := map[int]string{0: "alpha", 2: "gamma"}
	opts := Options{Title: "Same Book", Language: "fa", PagesPerChapter: 2}

	var a, b bytes.Buffer
	if err := NewBuilder(pages, 3, opts).WriteTo(&a); err != nil {
		t.Fatal(err)
	}
	if err := NewBuilder(pages, 3, opts).WriteTo(&b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical inputs produced different archives")
	}
}

func TestBuilder_BuildWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "book.epub")
	b := NewBuilder(map[int]string{0: "text"}, 1, Options{Title: "T", Language: "en"})
	if err := b.Build(out); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("output not readable as zip: %v", err)
	}
	zr.Close()
}
