// Package console relays console output from the sandboxed preview into an
// ordered transcript.
package console

import (
	"encoding/json"
	"fmt"

	"github.com/starford/livepad/internal/apperr"
)

// MessageType is the only message type the preview frame sends.
const MessageType = "console"

// Log levels forwarded by the preview shim.
const (
	LevelLog   = "log"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelInfo  = "info"
)

// Message is one console call relayed from the preview.
type Message struct {
	Type    string `json:"type"`
	LogType string `json:"logType"`
	Content string `json:"content"`
}

// ValidLevel reports whether l is a forwarded log level.
func ValidLevel(l string) bool {
	switch l {
	case LevelLog, LevelWarn, LevelError, LevelInfo:
		return true
	}
	return false
}

type wireMessage struct {
	Type    string  `json:"type"`
	LogType string  `json:"logType"`
	Content *string `json:"content"`
}

// Parse decodes raw as a console message. Anything that is not a JSON object
// of type "console" with a known logType and string content is rejected with
// apperr.ErrUnrecognized.
func Parse(raw []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", apperr.ErrUnrecognized, err)
	}
	m := Message{Type: w.Type, LogType: w.LogType}
	if w.Content != nil {
		m.Content = *w.Content
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	if w.Content == nil {
		return Message{}, fmt.Errorf("%w: missing content", apperr.ErrUnrecognized)
	}
	return m, nil
}

// Validate checks the message shape.
func (m Message) Validate() error {
	if m.Type != MessageType {
		return fmt.Errorf("%w: type %q", apperr.ErrUnrecognized, m.Type)
	}
	if !ValidLevel(m.LogType) {
		return fmt.Errorf("%w: logType %q", apperr.ErrUnrecognized, m.LogType)
	}
	return nil
}
