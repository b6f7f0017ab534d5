package console

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// maxFrameSize caps a single relayed console frame.
const maxFrameSize = 1 << 20

// WebSocketHandler accepts console frames from the page hosting the preview.
// Each text frame is parsed and posted; malformed frames are skipped.
type WebSocketHandler struct {
	bridge   *Bridge
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler returns a handler feeding b. Origins are not checked;
// the preview frame runs with an opaque origin.
func NewWebSocketHandler(b *Bridge, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		bridge: b,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("console: websocket upgrade", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("console: websocket closed", slog.String("error", err.Error()))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		m, err := Parse(data)
		if err != nil {
			continue
		}
		h.bridge.Post(m)
	}
}
