// Package preview turns the active file and its project into a single
// self-contained HTML document for a sandboxed frame.
package preview

import (
	"embed"
	"strings"
	"text/template"

	"github.com/starford/livepad/internal/models"
)

//go:embed assets/*
var assetsFS embed.FS

var (
	consoleShim = mustAsset("console_shim.js")

	jsTmpl      = mustTemplate("js.html.tmpl")
	cssTmpl     = mustTemplate("css.html.tmpl")
	mdTmpl      = mustTemplate("md.html.tmpl")
	genericTmpl = mustTemplate("generic.html.tmpl")
)

func mustAsset(name string) string {
	data, err := assetsFS.ReadFile("assets/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func mustTemplate(name string) *template.Template {
	return template.Must(template.New(name).Parse(mustAsset(name)))
}

// ConsoleShim returns the script that forwards console calls and uncaught
// errors from the preview frame to its parent.
func ConsoleShim() string { return consoleShim }

// Document is one composed preview.
type Document struct {
	HTML   string      `json:"html"`
	FileID string      `json:"fileId,omitempty"`
	Kind   models.Kind `json:"kind,omitempty"`
}

// Empty reports whether d has no content, i.e. there was no active file.
func (d Document) Empty() bool { return d.HTML == "" }

// pageData feeds the standalone page templates.
type pageData struct {
	Name         string
	Content      string
	Shim         string
	Literal      string
	Fallback     string
	HighlightCSS string
}

// Compose builds the preview for active using the whole project in files.
// A nil active file yields an empty document.
func Compose(active *models.FileRecord, files []models.FileRecord) Document {
	if active == nil {
		return Document{}
	}
	doc := Document{FileID: active.ID, Kind: active.Kind}
	switch active.Kind {
	case models.KindHTML:
		doc.HTML = composeHTML(active.Content, files)
	case models.KindJS:
		doc.HTML = render(jsTmpl, pageData{Name: active.Name, Content: active.Content, Shim: consoleShim})
	case models.KindCSS:
		doc.HTML = render(cssTmpl, pageData{Name: active.Name, Content: active.Content})
	case models.KindMarkdown:
		doc.HTML = render(mdTmpl, pageData{
			Name:         active.Name,
			Shim:         consoleShim,
			Literal:      templateLiteral(active.Content),
			Fallback:     renderMarkdown(active.Content),
			HighlightCSS: highlightCSS,
		})
	default:
		doc.HTML = render(genericTmpl, pageData{Name: active.Name, Content: active.Content})
	}
	return doc
}

func render(t *template.Template, data pageData) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		// Templates are static and only receive strings.
		panic(err)
	}
	return b.String()
}
