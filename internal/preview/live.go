package preview

import (
	"log/slog"
	"sync"

	"github.com/starford/livepad/internal/metrics"
	"github.com/starford/livepad/internal/models"
	"github.com/starford/livepad/internal/tree"
)

// Update is a recomposed document and its version.
type Update struct {
	Version  uint64   `json:"version"`
	Document Document `json:"document"`
}

// Live keeps the current preview for a tree. With auto update on, every tree
// mutation recomposes; with it off, only Run does.
type Live struct {
	tree   *tree.Store
	logger *slog.Logger

	mu      sync.Mutex
	auto    bool
	doc     Document
	version uint64

	lmu       sync.RWMutex
	listeners []func(Update)
}

// NewLive composes the initial document and starts following store.
func NewLive(store *tree.Store, auto bool, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Live{tree: store, logger: logger, auto: auto}
	l.mu.Lock()
	l.recomposeLocked()
	l.mu.Unlock()
	store.Subscribe(l.onTreeEvent)
	return l
}

// Subscribe registers fn for every recomposition.
func (l *Live) Subscribe(fn func(Update)) {
	l.lmu.Lock()
	l.listeners = append(l.listeners, fn)
	l.lmu.Unlock()
}

// Current returns the latest document and its version.
func (l *Live) Current() Update {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Update{Version: l.version, Document: l.doc}
}

// Auto reports whether tree mutations recompose the preview.
func (l *Live) Auto() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.auto
}

// SetAuto switches auto update. Turning it on recomposes immediately so the
// preview catches up with edits made while it was off.
func (l *Live) SetAuto(on bool) {
	l.mu.Lock()
	was := l.auto
	l.auto = on
	var u Update
	catchUp := on && !was
	if catchUp {
		u = l.recomposeLocked()
	}
	l.mu.Unlock()

	l.logger.Info("preview: auto update", slog.Bool("enabled", on))
	if catchUp {
		l.notify(u)
	}
}

// Run recomposes regardless of the auto setting.
func (l *Live) Run() Update {
	l.mu.Lock()
	u := l.recomposeLocked()
	l.mu.Unlock()
	l.notify(u)
	return u
}

func (l *Live) onTreeEvent(ev tree.Event) {
	l.mu.Lock()
	if !l.auto {
		l.mu.Unlock()
		return
	}
	u := l.recomposeLocked()
	l.mu.Unlock()
	l.notify(u)
}

func (l *Live) recomposeLocked() Update {
	snap := l.tree.Snapshot()
	var active *models.FileRecord
	for i := range snap.Files {
		if snap.Files[i].ID == snap.ActiveID {
			active = &snap.Files[i]
			break
		}
	}
	l.doc = Compose(active, snap.Files)
	l.version++
	kind := "none"
	if active != nil {
		kind = string(active.Kind)
	}
	metrics.RecordComposition(kind)
	return Update{Version: l.version, Document: l.doc}
}

func (l *Live) notify(u Update) {
	l.lmu.RLock()
	ls := make([]func(Update), len(l.listeners))
	copy(ls, l.listeners)
	l.lmu.RUnlock()
	for _, fn := range ls {
		fn(u)
	}
}
