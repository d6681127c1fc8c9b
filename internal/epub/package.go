package epub

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// modifiedStamp is fixed so that identical inputs produce identical
// archives; reconversions of the same book are byte-comparable.
const modifiedStamp = "2024-01-01T00:00:00Z"

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	dir := b.lang.dir

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id"`)
	sb.WriteString(fmt.Sprintf(" dir=\"%s\">\n", dir))
	sb.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")

	sb.WriteString(fmt.Sprintf("    <dc:identifier id=\"pub-id\">urn:uuid:%s</dc:identifier>\n", b.identifier()))
	sb.WriteString(fmt.Sprintf("    <dc:title>%s</dc:title>\n", escapeXML(b.opts.Title)))
	sb.WriteString(fmt.Sprintf("    <dc:language>%s</dc:language>\n", b.lang.code))
	sb.WriteString(fmt.Sprintf("    <meta property=\"dcterms:modified\">%s</meta>\n", modifiedStamp))

	sb.WriteString("  </metadata>\n\n")

	// Manifest
	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")
	for _, ch := range b.chapters {
		sb.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
			ch.id(), ch.id()))
	}
	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order); page-progression matches text direction.
	progression := "ltr"
	if dir == "rtl" {
		progression = "rtl"
	}
	sb.WriteString(fmt.Sprintf("  <spine toc=\"ncx\" page-progression-direction=\"%s\">\n", progression))
	for _, ch := range b.chapters {
		sb.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", ch.id()))
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")

	return sb.String()
}

// identifier derives a stable publication ID from the book's identity.
func (b *Builder) identifier() string {
	seed := fmt.Sprintf("foliate|%s|%s|%d", b.opts.Title, b.lang.code, b.totalPages)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
