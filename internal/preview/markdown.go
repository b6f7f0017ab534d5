package preview

import (
	"bytes"
	"log/slog"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const highlightStyle = "github"

var (
	markdown     = newMarkdownRenderer()
	highlightCSS = chromaCSS()
)

// newMarkdownRenderer builds the server-side renderer for the no-script
// fallback. Raw HTML in the source is omitted.
func newMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

func chromaCSS() string {
	var buf bytes.Buffer
	f := chromahtml.New(chromahtml.WithClasses(true))
	if err := f.WriteCSS(&buf, styles.Get(highlightStyle)); err != nil {
		slog.Warn("preview: highlight css", slog.String("error", err.Error()))
		return ""
	}
	return buf.String()
}

// renderMarkdown renders src to HTML, returning "" on failure.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		slog.Warn("preview: markdown fallback", slog.String("error", err.Error()))
		return ""
	}
	return buf.String()
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"${", `\${`,
	"</", `<\/`,
	"<!--", `<\!--`,
)

// templateLiteral escapes s for embedding between backticks of a JavaScript
// template literal inside a <script> element. Every "</" is escaped so no
// spelling of a closing script tag survives.
func templateLiteral(s string) string {
	if !strings.ContainsAny(s, "\\`$<") {
		return s
	}
	return literalEscaper.Replace(s)
}
