package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/livepad/internal/metrics"
)

// DefaultQueueSize is used when NewBridge is given a non-positive size.
const DefaultQueueSize = 256

// Entry is a transcript line.
type Entry struct {
	Seq     uint64    `json:"seq"`
	LogType string    `json:"logType"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Bridge accepts messages from any goroutine into a bounded inbox and appends
// them to the transcript from a single drain loop (Run).
//
// The transcript is append-only and uncapped until Clear.
type Bridge struct {
	inbox  chan Message
	logger *slog.Logger

	mu      sync.RWMutex
	entries []Entry
	seq     uint64

	lmu       sync.RWMutex
	listeners []func(Entry)
	onClear   []func()
}

// NewBridge returns a Bridge whose inbox holds queueSize messages.
func NewBridge(queueSize int, logger *slog.Logger) *Bridge {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		inbox:  make(chan Message, queueSize),
		logger: logger,
	}
}

// Post enqueues m without blocking. It reports false when m is malformed or
// the inbox is full; dropped messages are counted.
func (b *Bridge) Post(m Message) bool {
	if m.Validate() != nil {
		return false
	}
	select {
	case b.inbox <- m:
		return true
	default:
		metrics.RecordConsoleDropped()
		b.logger.Debug("console: inbox full, message dropped", slog.String("log_type", m.LogType))
		return false
	}
}

// Run drains the inbox until ctx is done. Messages still queued at shutdown
// are appended before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return nil
		case m := <-b.inbox:
			b.append(m)
		}
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case m := <-b.inbox:
			b.append(m)
		default:
			return
		}
	}
}

func (b *Bridge) append(m Message) {
	b.mu.Lock()
	b.seq++
	e := Entry{Seq: b.seq, LogType: m.LogType, Content: m.Content, At: time.Now().UTC()}
	b.entries = append(b.entries, e)
	b.mu.Unlock()

	metrics.RecordConsoleMessage(m.LogType)

	b.lmu.RLock()
	ls := make([]func(Entry), len(b.listeners))
	copy(ls, b.listeners)
	b.lmu.RUnlock()
	for _, fn := range ls {
		fn(e)
	}
}

// Subscribe registers fn for every appended entry. fn runs on the drain loop.
func (b *Bridge) Subscribe(fn func(Entry)) {
	b.lmu.Lock()
	b.listeners = append(b.listeners, fn)
	b.lmu.Unlock()
}

// Entries returns a copy of the transcript in arrival order.
func (b *Bridge) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// OnClear registers fn to run after every Clear.
func (b *Bridge) OnClear(fn func()) {
	b.lmu.Lock()
	b.onClear = append(b.onClear, fn)
	b.lmu.Unlock()
}

// Clear empties the transcript. Sequence numbers keep increasing.
func (b *Bridge) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()

	b.lmu.RLock()
	fns := make([]func(), len(b.onClear))
	copy(fns, b.onClear)
	b.lmu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
