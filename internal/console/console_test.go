package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/livepad/internal/apperr"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{"type":"console","logType":"warn","content":"careful"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.LogType != LevelWarn || m.Content != "careful" {
		t.Errorf("message = %+v", m)
	}

	if m, err := Parse([]byte(`{"type":"console","logType":"log","content":""}`)); err != nil || m.Content != "" {
		t.Errorf("empty content should be accepted: %+v %v", m, err)
	}
}

func TestParseRejectsUnknownShapes(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`[]`,
		`{"type":"resize","logType":"log","content":"x"}`,
		`{"type":"console","logType":"debug","content":"x"}`,
		`{"type":"console","logType":"log"}`,
		`{"type":"console","logType":"log","content":{"a":1}}`,
		`{"logType":"log","content":"x"}`,
	} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, apperr.ErrUnrecognized) {
			t.Errorf("Parse(%s) err = %v, want ErrUnrecognized", raw, err)
		}
	}
}

func runBridge(t *testing.T, b *Bridge) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitEntries(t *testing.T, b *Bridge, n int) []Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e := b.Entries(); len(e) >= n {
			return e
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries, have %d", n, len(b.Entries()))
	return nil
}

func TestBridgeOrderAndClear(t *testing.T) {
	b := NewBridge(16, quiet())
	var (
		mu   sync.Mutex
		seen []string
	)
	b.Subscribe(func(e Entry) {
		mu.Lock()
		seen = append(seen, e.Content)
		mu.Unlock()
	})
	runBridge(t, b)

	for _, c := range []string{"one", "two", "three"} {
		if !b.Post(Message{Type: MessageType, LogType: LevelLog, Content: c}) {
			t.Fatalf("Post(%s) rejected", c)
		}
	}
	entries := waitEntries(t, b, 3)
	for i, want := range []string{"one", "two", "three"} {
		if entries[i].Content != want || entries[i].Seq != uint64(i+1) {
			t.Errorf("entry %d = %+v", i, entries[i])
		}
	}
	mu.Lock()
	if strings.Join(seen, ",") != "one,two,three" {
		t.Errorf("listener saw %v", seen)
	}
	mu.Unlock()

	b.Clear()
	if len(b.Entries()) != 0 {
		t.Fatal("Clear left entries")
	}
	b.Post(Message{Type: MessageType, LogType: LevelError, Content: "after"})
	entries = waitEntries(t, b, 1)
	if entries[0].Seq != 4 || entries[0].LogType != LevelError {
		t.Errorf("entry after clear = %+v", entries[0])
	}
}

func TestBridgePostRejectsMalformed(t *testing.T) {
	b := NewBridge(4, quiet())
	if b.Post(Message{Type: "other", LogType: LevelLog}) {
		t.Error("wrong type accepted")
	}
	if b.Post(Message{Type: MessageType, LogType: "trace"}) {
		t.Error("unknown level accepted")
	}
}

func TestBridgeDropsWhenFull(t *testing.T) {
	b := NewBridge(2, quiet())
	m := Message{Type: MessageType, LogType: LevelInfo, Content: "x"}
	if !b.Post(m) || !b.Post(m) {
		t.Fatal("inbox should accept up to its size")
	}
	if b.Post(m) {
		t.Error("full inbox should drop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(b.Entries()); n != 2 {
		t.Errorf("entries after shutdown drain = %d, want 2", n)
	}
}

func TestWebSocketIngest(t *testing.T) {
	b := NewBridge(16, quiet())
	runBridge(t, b)

	srv := httptest.NewServer(NewWebSocketHandler(b, quiet()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frames := []string{
		`{"type":"console","logType":"log","content":"hello"}`,
		`{"type":"noise"}`,
		`garbage`,
		`{"type":"console","logType":"error","content":"boom at line 3:7"}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	entries := waitEntries(t, b, 2)
	if len(entries) != 2 || entries[0].Content != "hello" || entries[1].Content != "boom at line 3:7" {
		t.Errorf("entries = %+v", entries)
	}
}
