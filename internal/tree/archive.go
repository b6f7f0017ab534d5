package tree

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/starford/livepad/internal/apperr"
	"github.com/starford/livepad/internal/models"
)

// ArchiveName is the file name used for project exports.
const ArchiveName = "project.zip"

// PathOf returns the slash-separated path of a file, built from its folder
// chain, e.g. "src/lib/app.js".
func (s *Store) PathOf(fileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fileIndex(fileID)
	if i < 0 {
		return "", apperr.ErrNotFound
	}
	return s.pathLocked(s.files[i]), nil
}

func (s *Store) pathLocked(f models.FileRecord) string {
	parts := []string{f.Name}
	cur := f.ParentID
	for steps := 0; cur != nil && steps <= len(s.folders); steps++ {
		i := s.folderIndex(*cur)
		if i < 0 {
			break
		}
		parts = append(parts, s.folders[i].Name)
		cur = s.folders[i].ParentID
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, "/")
}

// WriteArchive writes every file as a zip entry at its tree path. Empty
// folders are not represented. Files sharing a path (names are not unique
// within a folder) get numbered suffixes: "a.txt", "a (2).txt", ...
func (s *Store) WriteArchive(w io.Writer) error {
	s.mu.Lock()
	type entry struct{ path, content string }
	entries := make([]entry, 0, len(s.files))
	taken := make(map[string]bool, len(s.files))
	for _, f := range s.files {
		p := archivePath(s.pathLocked(f))
		if p == "" {
			continue
		}
		entries = append(entries, entry{path: uniquePath(p, taken), content: f.Content})
	}
	s.mu.Unlock()

	zw := zip.NewWriter(w)
	for _, e := range entries {
		fw, err := zw.Create(e.path)
		if err != nil {
			return fmt.Errorf("tree: archive %s: %w", e.path, err)
		}
		if _, err := io.WriteString(fw, e.content); err != nil {
			return fmt.Errorf("tree: archive %s: %w", e.path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("tree: archive close: %w", err)
	}
	return nil
}

// archivePath drops empty, "." and ".." segments so names cannot escape the
// archive root.
func archivePath(p string) string {
	segs := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	out := segs[:0]
	for _, seg := range segs {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		out = append(out, seg)
	}
	return strings.Join(out, "/")
}

// uniquePath returns p, or p with " (n)" before its extension, choosing the
// first form not in taken, and records it. Comparison ignores case.
func uniquePath(p string, taken map[string]bool) string {
	candidate := p
	dir, base := "", p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		dir, base = p[:i+1], p[i+1:]
	}
	ext := path.Ext(base)
	if ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	for n := 2; taken[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s%s (%d)%s", dir, stem, n, ext)
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}
