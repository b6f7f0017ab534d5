// Package importer pulls files dropped into a directory into the tree.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/livepad/internal/apperr"
	"github.com/starford/livepad/internal/checksum"
	"github.com/starford/livepad/internal/metrics"
	"github.com/starford/livepad/internal/tree"
)

// MaxFileSize is the largest file the importer reads.
const MaxFileSize = 4 << 20

const (
	settle = 150 * time.Millisecond
	tick   = 50 * time.Millisecond
)

type tracked struct {
	id  string
	sum string
}

// Importer mirrors the top-level regular files of a directory into the tree.
// A file seen for the first time is imported at the root; later writes to
// the same name update that file's content while it still exists in the tree.
// Removing a file from the directory does not touch the tree.
//
// Importer is not safe for concurrent use; Sync and Watch are meant to run
// from one goroutine.
type Importer struct {
	store  *tree.Store
	dir    string
	logger *slog.Logger
	seen   map[string]tracked
}

// New returns an Importer for dir.
func New(store *tree.Store, dir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, dir: dir, logger: logger, seen: make(map[string]tracked)}
}

// Sync imports every eligible file currently in the directory.
func (im *Importer) Sync() error {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		return fmt.Errorf("importer: read dir: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			im.importFile(filepath.Join(im.dir, e.Name()))
		}
	}
	return nil
}

// Watch runs an initial Sync and then follows the directory until ctx is
// cancelled. Writes are applied once a file has been quiet for a short
// settle period so editors saving in several steps produce one update.
func (im *Importer) Watch(ctx context.Context) error {
	if err := os.MkdirAll(im.dir, 0o755); err != nil {
		return fmt.Errorf("importer: create dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(im.dir); err != nil {
		return fmt.Errorf("importer: watch %s: %w", im.dir, err)
	}
	if err := im.Sync(); err != nil {
		im.logger.Warn("importer: initial sync failed", slog.String("error", err.Error()))
	}
	im.logger.Info("importer: started", slog.String("dir", im.dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("importer: stopped")
			return nil

		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) >= settle {
					delete(pending, path)
					im.importFile(path)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(ev.Name) != filepath.Clean(im.dir) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[ev.Name] = time.Now()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, ev.Name)
				delete(im.seen, filepath.Base(ev.Name))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("importer: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// skip reports names the importer never reads: dotfiles and editor
// swap or backup files.
func skip(name string) bool {
	return name == "" ||
		strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp")
}

func (im *Importer) importFile(path string) {
	name := filepath.Base(path)
	if skip(name) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			im.logger.Warn("importer: stat failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if info.Size() > MaxFileSize {
		im.logger.Warn("importer: file too large", slog.String("path", path), slog.Int64("size", info.Size()))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		im.logger.Warn("importer: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	sum := checksum.Sum(data)

	if prev, ok := im.seen[name]; ok {
		if prev.sum == sum {
			return
		}
		err := im.store.UpdateContent(prev.id, string(data))
		if err == nil {
			im.seen[name] = tracked{id: prev.id, sum: sum}
			metrics.RecordImport("watch")
			im.logger.Debug("importer: updated", slog.String("name", name), slog.String("id", prev.id))
			return
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			im.logger.Warn("importer: update failed", slog.String("name", name), slog.String("error", err.Error()))
			return
		}
		// The file was deleted in the editor; import it afresh.
	}

	f, err := im.store.Import(name, string(data))
	if err != nil {
		im.logger.Warn("importer: import failed", slog.String("name", name), slog.String("error", err.Error()))
		return
	}
	im.seen[name] = tracked{id: f.ID, sum: sum}
	metrics.RecordImport("watch")
	im.logger.Info("importer: imported", slog.String("name", name), slog.String("id", f.ID), slog.String("kind", string(f.Kind)))
}
