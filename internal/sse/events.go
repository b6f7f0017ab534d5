package sse

import (
	"strings"

	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/preview"
	"github.com/starford/livepad/internal/tree"
)

// Event names besides the per-mutation "tree.<kind>" events.
const (
	TypeTreeChanged    = "tree.changed"
	TypePreviewUpdated = "preview.updated"
	TypeConsoleMessage = "console.message"
	TypeConsoleCleared = "console.cleared"
)

// Event is one message on the stream.
type Event struct {
	Type string
	Data any
}

// isMutation reports whether e is a tree mutation that earns a tree.changed hint.
func (e Event) isMutation() bool {
	return strings.HasPrefix(e.Type, "tree.") && e.Type != TypeTreeChanged
}

// TreeEvent is published as "tree.<kind>" with the mutation as payload.
func TreeEvent(ev tree.Event) Event {
	return Event{Type: "tree." + string(ev.Kind), Data: ev}
}

// previewPayload omits the HTML; clients fetch it from GET /api/preview.
type previewPayload struct {
	Version uint64 `json:"version"`
	FileID  string `json:"fileId,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// PreviewUpdated announces a new preview version.
func PreviewUpdated(u preview.Update) Event {
	return Event{Type: TypePreviewUpdated, Data: previewPayload{
		Version: u.Version,
		FileID:  u.Document.FileID,
		Kind:    string(u.Document.Kind),
	}}
}

// ConsoleMessage carries one transcript entry.
func ConsoleMessage(e console.Entry) Event {
	return Event{Type: TypeConsoleMessage, Data: e}
}

// ConsoleCleared tells clients to empty their console view.
func ConsoleCleared() Event {
	return Event{Type: TypeConsoleCleared, Data: struct{}{}}
}

// Attach forwards tree mutations, preview updates and console output to b.
func (b *Broker) Attach(t *tree.Store, live *preview.Live, bridge *console.Bridge) {
	t.Subscribe(func(ev tree.Event) { b.Publish(TreeEvent(ev)) })
	live.Subscribe(func(u preview.Update) { b.Publish(PreviewUpdated(u)) })
	bridge.Subscribe(func(e console.Entry) { b.Publish(ConsoleMessage(e)) })
	bridge.OnClear(func() { b.Publish(ConsoleCleared()) })
}
