// Package sse streams tree, preview and console events to browsers as
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/livepad/internal/metrics"
)

// clientBuffer is how many frames a slow client may lag before frames are
// dropped for it.
const clientBuffer = 64

// Broker fans events out to connected clients. One loop goroutine owns the
// client set, the frame counter and the tree.changed throttle; the exported
// methods only talk to it over channels.
type Broker struct {
	changedEvery time.Duration

	join   chan chan []byte
	leave  chan chan []byte
	events chan Event
	count  chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. Bursts of tree mutations yield at most one
// tree.changed hint per changedEvery.
func NewBroker(changedEvery time.Duration) *Broker {
	if changedEvery <= 0 {
		changedEvery = 500 * time.Millisecond
	}
	b := &Broker{
		changedEvery: changedEvery,
		join:         make(chan chan []byte),
		leave:        make(chan chan []byte),
		events:       make(chan Event, 256),
		count:        make(chan chan int),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go b.loop()
	return b
}

// fanout is the loop's state.
type fanout struct {
	clients     map[chan []byte]struct{}
	seq         uint64
	lastChanged time.Time
}

// frame renders e as an SSE frame with a monotonically increasing id.
func (f *fanout) frame(e Event) ([]byte, bool) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, false
	}
	f.seq++
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(f.seq, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(e.Type)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), true
}

func (f *fanout) send(e Event) {
	raw, ok := f.frame(e)
	if !ok {
		return
	}
	for ch := range f.clients {
		select {
		case ch <- raw:
		default:
			metrics.RecordSSEDropped()
		}
	}
}

func (b *Broker) loop() {
	defer close(b.stopped)
	f := &fanout{clients: make(map[chan []byte]struct{})}

	for {
		select {
		case <-b.stop:
			for ch := range f.clients {
				close(ch)
			}
			metrics.SetSSEConnectionsActive(0)
			return

		case ch := <-b.join:
			f.clients[ch] = struct{}{}
			metrics.SetSSEConnectionsActive(len(f.clients))

		case ch := <-b.leave:
			if _, ok := f.clients[ch]; ok {
				delete(f.clients, ch)
				close(ch)
			}
			metrics.SetSSEConnectionsActive(len(f.clients))

		case e := <-b.events:
			f.send(e)
			if e.isMutation() {
				if now := time.Now(); now.Sub(f.lastChanged) >= b.changedEvery {
					f.lastChanged = now
					f.send(Event{Type: TypeTreeChanged, Data: struct{}{}})
				}
			}

		case resp := <-b.count:
			resp <- len(f.clients)
		}
	}
}

// Close stops the loop and ends every client stream. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues e for every client. Tree mutations are followed by a
// throttled tree.changed hint.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

// ServeHTTP streams events until the client goes away (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// Reconnect quickly; the tree is refetched on tree.changed anyway.
	_, _ = w.Write([]byte("retry: 2000\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
