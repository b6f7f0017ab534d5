// Package testutil provides shared test helpers for building trees and stores.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/livepad/internal/ident"
	"github.com/starford/livepad/internal/kv"
	"github.com/starford/livepad/internal/tree"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Tree returns a tree seeded with the default project on an in-memory store.
func Tree(t *testing.T) *tree.Store {
	t.Helper()
	ids, err := ident.New(ident.SchemeShort)
	if err != nil {
		t.Fatal(err)
	}
	return tree.Load(kv.NewMemory(), ids, Logger())
}

// EmptyTree returns a tree with every default file removed.
func EmptyTree(t *testing.T) *tree.Store {
	t.Helper()
	s := Tree(t)
	for _, f := range s.Files() {
		if err := s.DeleteFile(f.ID); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

// SQLiteStore opens a temporary SQLite kv store that is closed on cleanup.
func SQLiteStore(t *testing.T) kv.Store {
	t.Helper()
	db, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "livepad-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
