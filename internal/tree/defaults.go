package tree

import (
	"embed"
	"strings"
	"text/template"

	"github.com/starford/livepad/internal/models"
)

//go:embed defaults/*
var defaultsFS embed.FS

var newHTMLTmpl = template.Must(template.ParseFS(defaultsFS, "defaults/new.html.tmpl"))

func mustAsset(name string) string {
	data, err := defaultsFS.ReadFile("defaults/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

var (
	defaultHTML     = mustAsset("index.html")
	defaultCSS      = mustAsset("styles.css")
	defaultJS       = mustAsset("script.js")
	defaultMarkdown = mustAsset("example.md")
)

// DefaultContent returns the starter content for a new file of kind k named name.
func DefaultContent(k models.Kind, name string) string {
	switch k {
	case models.KindHTML:
		var b strings.Builder
		if err := newHTMLTmpl.Execute(&b, name); err != nil {
			return ""
		}
		return b.String()
	case models.KindCSS:
		return defaultCSS
	case models.KindJS:
		return defaultJS
	case models.KindMarkdown:
		return defaultMarkdown
	default:
		return ""
	}
}

// defaultProject returns the three-file starter project without ids; the
// html file comes first.
func defaultProject() []models.FileRecord {
	return []models.FileRecord{
		{Name: "index.html", Kind: models.KindHTML, Content: defaultHTML},
		{Name: "styles.css", Kind: models.KindCSS, Content: defaultCSS},
		{Name: "script.js", Kind: models.KindJS, Content: defaultJS},
	}
}
