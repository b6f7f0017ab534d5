package internal

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/sse"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
}

func TestExportDefaultProject(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "memory"

	var buf bytes.Buffer
	if err := Export(context.Background(), &buf, WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{"index.html", "script.js", "styles.css"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
		}
	}
}

func TestComponentsShareStore(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "file"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state")

	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	logger := app.newLogger()

	c, err := app.openComponents(logger)
	if err != nil {
		t.Fatal(err)
	}
	f, err := c.svc.CreateFile(context.Background(), "kept", "md", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	again, err := app.openComponents(logger)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if got, err := again.tree.File(f.ID); err != nil || got.Name != "kept.md" {
		t.Errorf("reopened: %+v, %v", got, err)
	}
	if a, _ := again.tree.Active(); a.ID != f.ID {
		t.Errorf("active = %q, want %q", a.ID, f.ID)
	}
}

func openTestComponents(t *testing.T, cfg *Config) *components {
	t.Helper()
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	c, err := app.openComponents(app.newLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// callMCP posts one JSON-RPC tools/call to /mcp and returns the first text
// content of the result.
func callMCP(t *testing.T, srv *httptest.Server, token, tool string, args map[string]any) (int, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, ""
	}

	var out struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", tool, err)
	}
	if out.Result.IsError || len(out.Result.Content) == 0 {
		t.Fatalf("%s failed: %+v", tool, out.Result)
	}
	return resp.StatusCode, out.Result.Content[0].Text
}

func TestMCPEndpointSharesServerComponents(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "memory"
	c := openTestComponents(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.bridge.Run(ctx) }()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	srv := httptest.NewServer(newRouter(cfg, c, broker, quietLogger()))
	defer srv.Close()

	// A file created over MCP lands in the tree the API serves.
	if code, _ := callMCP(t, srv, "", "create_file", map[string]any{"name": "from-agent", "kind": "md"}); code != http.StatusOK {
		t.Fatalf("create_file status = %d", code)
	}
	found := false
	for _, f := range c.tree.Files() {
		if f.Name == "from-agent.md" {
			found = true
		}
	}
	if !found {
		t.Fatal("file created over /mcp missing from the server's tree")
	}

	// Console output posted by the preview is visible to read_console.
	if !c.bridge.Post(console.Message{Type: console.MessageType, LogType: "error", Content: "boom"}) {
		t.Fatal("Post rejected")
	}
	deadline := time.Now().Add(time.Second)
	for len(c.bridge.Entries()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("console entry never appended")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, text := callMCP(t, srv, "", "read_console", nil)
	if !strings.Contains(text, "[error] boom") {
		t.Errorf("read_console = %q", text)
	}
}

func TestMCPEndpointRequiresToken(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Auth.Mode = AuthModeToken
	cfg.Auth.Token = "s3cret"
	c := openTestComponents(t, cfg)

	srv := httptest.NewServer(newRouter(cfg, c, nil, quietLogger()))
	defer srv.Close()

	if code, _ := callMCP(t, srv, "", "list_files", nil); code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", code)
	}
	if code, text := callMCP(t, srv, "s3cret", "list_files", nil); code != http.StatusOK || !strings.Contains(text, "index.html") {
		t.Errorf("with token: status = %d, text = %q", code, text)
	}
}

func TestStdioRefusesStoreHeldByServer(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "file"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state")
	c := openTestComponents(t, cfg)

	release, err := acquireServerLock(c.store, "127.0.0.1:8080")
	if err != nil {
		t.Fatal(err)
	}

	err = RunMCP(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if !errors.Is(err, errStoreInUse) {
		t.Fatalf("RunMCP = %v, want errStoreInUse", err)
	}
	if !strings.Contains(err.Error(), "127.0.0.1:8080") {
		t.Errorf("error does not name the server: %v", err)
	}

	release()
	if err := checkServerLock(c.store); err != nil {
		t.Errorf("lock still held after release: %v", err)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
