package epub

import (
	"fmt"
	"strings"
)

// generateChapterXHTML renders one chapter's page range to XHTML.
// Each blank-line-separated block of a page's text becomes a paragraph;
// pages without text get a placeholder element.
func (b *Builder) generateChapterXHTML(ch chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
`)
	sb.WriteString(fmt.Sprintf("<html xmlns=\"http://www.w3.org/1999/xhtml\" dir=\"%s\" xml:lang=\"%s\">\n",
		b.lang.dir, b.lang.code))
	sb.WriteString("<head>\n  <title>")
	sb.WriteString(escapeXML(ch.title()))
	sb.WriteString("</title>\n  <link rel=\"stylesheet\" type=\"text/css\" href=\"../styles/style.css\"/>\n</head>\n")
	sb.WriteString(fmt.Sprintf("<body dir=\"%s\">\n", b.lang.dir))

	for page := ch.start; page < ch.end; page++ {
		text, ok := b.pages[page]
		if !ok || strings.TrimSpace(text) == "" {
			sb.WriteString(fmt.Sprintf("  <p class=\"failed-page\">[Page %d: OCR failed]</p>\n", page+1))
			continue
		}
		writeParagraphs(&sb, text)
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// writeParagraphs splits a page's text on blank lines and emits one <p>
// per block, escaping all content and keeping intra-paragraph line breaks.
func writeParagraphs(sb *strings.Builder, text string) {
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := strings.ReplaceAll(escapeXML(para), "\n", "<br/>")
		sb.WriteString("  <p>")
		sb.WriteString(escaped)
		sb.WriteString("</p>\n")
	}
}
