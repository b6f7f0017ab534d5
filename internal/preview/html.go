package preview

import (
	"strings"

	"github.com/starford/livepad/internal/models"
)

// composeHTML injects every stylesheet and the console shim into the head
// of base, and every script into its body, synthesizing structure as needed.
func composeHTML(base string, files []models.FileRecord) string {
	var styles, scripts []string
	for _, f := range files {
		switch f.Kind {
		case models.KindCSS:
			styles = append(styles, "<style>"+f.Content+"</style>")
		case models.KindJS:
			scripts = append(scripts, "<script>"+f.Content+"</script>")
		}
	}
	head := strings.Join(styles, "\n") + "\n<script>\n" + consoleShim + "</script>"
	body := strings.Join(scripts, "\n")

	doc := injectHead(base, head)
	return injectBody(doc, body)
}

func injectHead(doc, head string) string {
	lower := asciiLower(doc)
	if i := strings.Index(lower, "</head>"); i >= 0 {
		return doc[:i] + head + "\n" + doc[i:]
	}
	if i := openTagIndex(lower, "<html"); i >= 0 {
		if end := strings.IndexByte(doc[i:], '>'); end >= 0 {
			at := i + end + 1
			return doc[:at] + "\n<head>" + head + "\n</head>\n" + doc[at:]
		}
	}
	return "<!DOCTYPE html><html><head>" + head + "</head><body>" + doc + "</body></html>"
}

func injectBody(doc, body string) string {
	lower := asciiLower(doc)
	if i := strings.LastIndex(lower, "</body>"); i >= 0 {
		return doc[:i] + body + "\n" + doc[i:]
	}
	closeHTML := strings.LastIndex(lower, "</html>")
	if openTagIndex(lower, "<body") >= 0 {
		tail := "\n" + body + "\n</body>\n"
		if closeHTML >= 0 {
			return doc[:closeHTML] + tail + doc[closeHTML:]
		}
		return doc + tail
	}
	if closeHTML >= 0 {
		return doc[:closeHTML] + "\n" + body + "\n" + doc[closeHTML:]
	}
	return doc + "\n" + body
}

// openTagIndex finds the first "<name" that is followed by '>', whitespace,
// '/' or the end of input, so "<body" does not match "<bodyguard>".
func openTagIndex(lower, tag string) int {
	off := 0
	for {
		i := strings.Index(lower[off:], tag)
		if i < 0 {
			return -1
		}
		at := off + i
		next := at + len(tag)
		if next >= len(lower) {
			return at
		}
		switch lower[next] {
		case '>', ' ', '\t', '\n', '\r', '\f', '/':
			return at
		}
		off = next
	}
}

// asciiLower lowercases A-Z only, keeping byte offsets aligned with s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
