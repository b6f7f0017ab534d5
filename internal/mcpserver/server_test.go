package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/preview"
	"github.com/starford/livepad/internal/testutil"
	"github.com/starford/livepad/internal/tree"
	"github.com/starford/livepad/internal/workspace"
)

type fixture struct {
	srv    *Server
	tree   *tree.Store
	bridge *console.Bridge
}

func testServer(t *testing.T) fixture {
	t.Helper()
	ts := testutil.Tree(t)
	live := preview.NewLive(ts, true, testutil.Logger())
	bridge := console.NewBridge(16, testutil.Logger())
	svc := workspace.NewService(ts, live, bridge)
	return fixture{srv: New(svc, "test"), tree: ts, bridge: bridge}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "create_file":
		result, err = srv.createFile(ctx, req)
	case "update_file":
		result, err = srv.updateFile(ctx, req)
	case "set_active":
		result, err = srv.setActive(ctx, req)
	case "import_file":
		result, err = srv.importFile(ctx, req)
	case "compose_preview":
		result, err = srv.composePreview(ctx, req)
	case "read_console":
		result, err = srv.readConsole(ctx, req)
	case "get_project_guide":
		result, err = srv.getProjectGuide(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadFile(t *testing.T) {
	f := testServer(t)

	r := callTool(t, f.srv, "create_file", map[string]interface{}{
		"name":    "about",
		"kind":    "html",
		"content": "<h1>About</h1>",
	})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	var created map[string]string
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatal(err)
	}
	if created["path"] != "about.html" {
		t.Errorf("created = %v", created)
	}

	r = callTool(t, f.srv, "read_file", map[string]interface{}{"id": created["id"]})
	if text := resultText(r); text != "<h1>About</h1>" {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateFileRejectsUnknownKind(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "create_file", map[string]interface{}{"name": "x", "kind": "exe"})
	if !r.IsError {
		t.Error("expected error for unknown kind")
	}
}

func TestListFilesMarksActive(t *testing.T) {
	f := testServer(t)
	text := resultText(callTool(t, f.srv, "list_files", map[string]interface{}{}))
	lines := strings.Split(text, "\n")
	if len(lines) != 3 {
		t.Fatalf("list = %q", text)
	}
	if !strings.HasPrefix(lines[0], "* index.html") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestReadFileMissing(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "read_file", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
	r = callTool(t, f.srv, "read_file", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id argument")
	}
}

func TestUpdateFileChecksum(t *testing.T) {
	f := testServer(t)
	id := f.tree.Files()[2].ID

	r := callTool(t, f.srv, "update_file", map[string]interface{}{"id": id, "content": "a()", "checksum": "stale"})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale update = %q", resultText(r))
	}

	r = callTool(t, f.srv, "update_file", map[string]interface{}{"id": id, "content": "a()"})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	if got, _ := f.tree.File(id); got.Content != "a()" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestComposePreviewFollowsActive(t *testing.T) {
	f := testServer(t)
	js := f.tree.Files()[2].ID
	callTool(t, f.srv, "update_file", map[string]interface{}{"id": js, "content": "console.log('hi')"})
	callTool(t, f.srv, "set_active", map[string]interface{}{"id": js})

	text := resultText(callTool(t, f.srv, "compose_preview", map[string]interface{}{}))
	if !strings.Contains(text, "console.log('hi')") || !strings.Contains(text, "try {") {
		t.Errorf("js preview = %q", text)
	}

	for _, file := range f.tree.Files() {
		_ = f.tree.DeleteFile(file.ID)
	}
	if text := resultText(callTool(t, f.srv, "compose_preview", map[string]interface{}{})); text != "no active file" {
		t.Errorf("empty preview = %q", text)
	}
}

func TestReadConsole(t *testing.T) {
	f := testServer(t)
	if text := resultText(callTool(t, f.srv, "read_console", map[string]interface{}{})); text != "console is empty" {
		t.Errorf("empty console = %q", text)
	}

	f.bridge.Post(console.Message{Type: console.MessageType, LogType: console.LevelError, Content: "boom at line 3:7"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = f.bridge.Run(ctx) // drains what is queued

	text := resultText(callTool(t, f.srv, "read_console", map[string]interface{}{}))
	if text != "[error] boom at line 3:7\n" {
		t.Errorf("console = %q", text)
	}
}

func TestImportFileDataURI(t *testing.T) {
	f := testServer(t)
	uri := "data:text/css;base64," + base64.StdEncoding.EncodeToString([]byte("p{}"))

	r := callTool(t, f.srv, "import_file", map[string]interface{}{"url": uri, "filename": "../theme.css"})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
	var got map[string]string
	_ = json.Unmarshal([]byte(resultText(r)), &got)
	if got["path"] != "theme.css" || got["kind"] != "css" {
		t.Errorf("imported = %v", got)
	}
}

func TestImportFileBlockedHost(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "import_file", map[string]interface{}{"url": "http://127.0.0.1/x.js"})
	if !r.IsError || !strings.Contains(resultText(r), "blocked host") {
		t.Errorf("loopback import = %q", resultText(r))
	}
	r = callTool(t, f.srv, "import_file", map[string]interface{}{"url": "ftp://example.com/x.js"})
	if !r.IsError {
		t.Error("expected error for ftp scheme")
	}
}

func TestDecodeDataURI(t *testing.T) {
	cases := []struct {
		uri     string
		want    string
		ext     string
		wantErr bool
	}{
		{"data:text/plain,hello%20world", "hello world", ".txt", false},
		{"data:,plain", "plain", ".txt", false},
		{"data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(`{}`)), "{}", ".json", false},
		{"data:image/png;base64,AAAA", "", "", true},
		{"data:text/plain", "", "", true},
	}
	for _, tc := range cases {
		data, ext, err := decodeDataURI(tc.uri)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v", tc.uri, err)
			continue
		}
		if !tc.wantErr && (string(data) != tc.want || ext != tc.ext) {
			t.Errorf("%s: got %q %q", tc.uri, data, ext)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"page.html":       "page.html",
		"../../etc/x.css": "x.css",
		`dir\evil.js`:     "evil.js",
		"my file.md":      "my_file.md",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sanitizeFilename(".."); len(got) != 36 {
		t.Errorf("sanitizeFilename(..) = %q, want a uuid", got)
	}
}

func TestGetProjectGuide(t *testing.T) {
	f := testServer(t)
	text := resultText(callTool(t, f.srv, "get_project_guide", map[string]interface{}{}))
	if !strings.Contains(text, "Livepad Project Guide") {
		t.Error("guide missing title")
	}
}
