package epub

import "fmt"

// generateStylesheet renders the base stylesheet with the language's
// direction and font stack.
func (b *Builder) generateStylesheet() string {
	return fmt.Sprintf(`body {
    direction: %s;
    unicode-bidi: embed;
    font-family: %s;
    font-size: 1.1em;
    line-height: 1.8;
    margin: 1em;
    text-align: justify;
}
p {
    margin: 0.5em 0;
    text-indent: 1em;
}
.failed-page {
    color: #999;
    font-style: italic;
    text-align: center;
    padding: 2em 0;
}
`, b.lang.dir, b.lang.fontFamily)
}
