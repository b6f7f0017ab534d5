package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/models"
	"github.com/starford/livepad/internal/preview"
	"github.com/starford/livepad/internal/testutil"
	"github.com/starford/livepad/internal/tree"
)

type frame struct {
	ID    uint64
	Event string
	Data  string
}

func parseFrame(t *testing.T, raw []byte) frame {
	t.Helper()
	var f frame
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		k, v, _ := strings.Cut(line, ": ")
		switch k {
		case "id":
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				t.Fatalf("bad id line %q", line)
			}
			f.ID = n
		case "event":
			f.Event = v
		case "data":
			f.Data = v
		}
	}
	return f
}

// collect reads frames until none arrives for quiet.
func collect(t *testing.T, ch chan []byte, quiet time.Duration) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, parseFrame(t, raw))
		case <-time.After(quiet):
			return out
		}
	}
}

func named(frames []frame, event string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func TestTreeEventPayload(t *testing.T) {
	ev := TreeEvent(tree.Event{Kind: tree.EventDeleted, ID: "f1", IsFolder: true})
	if ev.Type != "tree.deleted" {
		t.Errorf("Type = %q", ev.Type)
	}
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"kind":"deleted","id":"f1","isFolder":true}` {
		t.Errorf("payload = %s", raw)
	}
	if !ev.isMutation() {
		t.Error("tree.deleted should count as a mutation")
	}
	if (Event{Type: TypeTreeChanged}).isMutation() {
		t.Error("tree.changed must not count as a mutation")
	}
}

func TestPreviewUpdatedOmitsHTML(t *testing.T) {
	ev := PreviewUpdated(preview.Update{Version: 7, Document: preview.Document{
		HTML: "<p>big</p>", FileID: "abc1234", Kind: models.KindMarkdown,
	}})
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"version":7,"fileId":"abc1234","kind":"md"}` {
		t.Errorf("payload = %s", raw)
	}
}

func TestAttachForwardsTreeMutations(t *testing.T) {
	ts := testutil.Tree(t)
	live := preview.NewLive(ts, true, testutil.Logger())
	bridge := console.NewBridge(8, testutil.Logger())

	b := NewBroker(time.Hour)
	defer b.Close()
	b.Attach(ts, live, bridge)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	f, err := ts.CreateFile("notes", models.KindMarkdown, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.UpdateContent(f.ID, "# hi"); err != nil {
		t.Fatal(err)
	}
	frames := collect(t, ch, 200*time.Millisecond)

	created := named(frames, "tree.created")
	if len(created) != 1 {
		t.Fatalf("tree.created frames = %d in %+v", len(created), frames)
	}
	var ev tree.Event
	if err := json.Unmarshal([]byte(created[0].Data), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != tree.EventCreated || ev.ID != f.ID {
		t.Errorf("created payload = %+v", ev)
	}
	if n := len(named(frames, "tree.content")); n != 1 {
		t.Errorf("tree.content frames = %d", n)
	}
	// Two mutations inside one throttle window yield one hint.
	if n := len(named(frames, TypeTreeChanged)); n != 1 {
		t.Errorf("tree.changed frames = %d, want 1", n)
	}
	if len(named(frames, TypePreviewUpdated)) == 0 {
		t.Error("no preview.updated frame with auto update on")
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].ID <= frames[i-1].ID {
			t.Fatalf("frame ids not increasing: %d then %d", frames[i-1].ID, frames[i].ID)
		}
	}
}

func TestAttachForwardsConsole(t *testing.T) {
	ts := testutil.Tree(t)
	live := preview.NewLive(ts, false, testutil.Logger())
	bridge := console.NewBridge(8, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridge.Run(ctx) }()

	b := NewBroker(time.Second)
	defer b.Close()
	b.Attach(ts, live, bridge)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	bridge.Post(console.Message{Type: console.MessageType, LogType: "warn", Content: "careful"})
	frames := collect(t, ch, 200*time.Millisecond)
	msgs := named(frames, TypeConsoleMessage)
	if len(msgs) != 1 {
		t.Fatalf("console.message frames = %d", len(msgs))
	}
	var e console.Entry
	if err := json.Unmarshal([]byte(msgs[0].Data), &e); err != nil {
		t.Fatal(err)
	}
	if e.LogType != "warn" || e.Content != "careful" {
		t.Errorf("entry = %+v", e)
	}

	bridge.Clear()
	frames = collect(t, ch, 200*time.Millisecond)
	if n := len(named(frames, TypeConsoleCleared)); n != 1 {
		t.Errorf("console.cleared frames = %d", n)
	}
}

func TestChangedHintThrottle(t *testing.T) {
	b := NewBroker(50 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(TreeEvent(tree.Event{Kind: tree.EventCreated, ID: "a"}))
	b.Publish(TreeEvent(tree.Event{Kind: tree.EventActive, ID: "a"}))
	first := collect(t, ch, 100*time.Millisecond)
	if n := len(named(first, TypeTreeChanged)); n != 1 {
		t.Fatalf("first window tree.changed = %d, want 1", n)
	}

	b.Publish(TreeEvent(tree.Event{Kind: tree.EventReset}))
	second := collect(t, ch, 100*time.Millisecond)
	if n := len(named(second, TypeTreeChanged)); n != 1 {
		t.Errorf("second window tree.changed = %d, want 1", n)
	}

	// Preview and console events never trigger the hint.
	b.Publish(ConsoleCleared())
	if n := len(named(collect(t, ch, 100*time.Millisecond), TypeTreeChanged)); n != 0 {
		t.Errorf("console.cleared produced %d tree.changed", n)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(ConsoleCleared())
	}
	// The loop is still responsive once the buffer is full.
	if n := b.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d", n)
	}
}

func TestServeHTTPStreamsFrames(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Publish(TreeEvent(tree.Event{Kind: tree.EventMoved, ID: "x"}))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 2000\n\n") {
		t.Errorf("body does not start with retry hint: %q", body)
	}
	if !strings.Contains(body, "event: tree.moved\ndata: {\"kind\":\"moved\",\"id\":\"x\"}") {
		t.Errorf("body missing tree.moved frame: %q", body)
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseEndsStreams(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Error("clients remain after Close")
	}

	// No-ops after Close.
	b.Publish(TreeEvent(tree.Event{Kind: tree.EventReset}))
	b.Close()
	if _, ok := <-b.Subscribe(); ok {
		t.Error("Subscribe after Close returned an open channel")
	}
}
