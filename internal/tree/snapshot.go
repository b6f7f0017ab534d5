package tree

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/livepad/internal/metrics"
	"github.com/starford/livepad/internal/models"
)

// Keys under which the tree is snapshotted. Each is written independently.
const (
	KeyFiles    = "editor_files"
	KeyFolders  = "editor_folders"
	KeyActiveID = "editor_activeFileId"
)

// persistLocked writes files, folders and the active id. Failures are logged
// and counted; the in-memory state stays authoritative.
func (s *Store) persistLocked() {
	metrics.SetTreeSize(len(s.files), len(s.folders))

	files := s.files
	if files == nil {
		files = []models.FileRecord{}
	}
	folders := s.folders
	if folders == nil {
		folders = []models.FolderRecord{}
	}

	s.writeJSON(KeyFiles, files)
	s.writeJSON(KeyFolders, folders)

	var err error
	if s.activeID == "" {
		err = s.kv.Remove(KeyActiveID)
	} else {
		err = s.kv.Set(KeyActiveID, s.activeID)
	}
	if err != nil {
		s.persistFailed(KeyActiveID, err)
	}
}

func (s *Store) writeJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.persistFailed(key, err)
		return
	}
	if err := s.kv.Set(key, string(data)); err != nil {
		s.persistFailed(key, err)
	}
}

func (s *Store) persistFailed(key string, err error) {
	metrics.RecordPersistFailure(key)
	s.logger.Error("tree: persist failed",
		slog.String("key", key),
		slog.String("error", err.Error()))
}

// load rehydrates from the kv store. A missing, malformed or empty file list
// bootstraps the default project.
func (s *Store) load() {
	files, ok := s.readFiles()
	if !ok || len(files) == 0 {
		s.logger.Info("tree: no saved project, creating default")
		s.bootstrapLocked()
		s.persistLocked()
		return
	}

	s.files = files
	s.folders = s.readFolders()
	s.repairLocked()

	s.activeID = s.readActiveID()
	if s.fileIndex(s.activeID) < 0 {
		s.activeID = s.firstFileID()
	}
	metrics.SetTreeSize(len(s.files), len(s.folders))
	s.logger.Info("tree: loaded",
		slog.Int("files", len(s.files)),
		slog.Int("folders", len(s.folders)))
}

func (s *Store) readFiles() ([]models.FileRecord, bool) {
	raw, ok, err := s.kv.Get(KeyFiles)
	if err != nil {
		s.logger.Error("tree: read failed", slog.String("key", KeyFiles), slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var files []models.FileRecord
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		s.logger.Warn("tree: malformed saved files", slog.String("error", err.Error()))
		return nil, false
	}
	return files, true
}

func (s *Store) readFolders() []models.FolderRecord {
	raw, ok, err := s.kv.Get(KeyFolders)
	if err != nil {
		s.logger.Error("tree: read failed", slog.String("key", KeyFolders), slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}
	var folders []models.FolderRecord
	if err := json.Unmarshal([]byte(raw), &folders); err != nil {
		s.logger.Warn("tree: malformed saved folders", slog.String("error", err.Error()))
		return nil
	}
	return folders
}

func (s *Store) readActiveID() string {
	raw, ok, err := s.kv.Get(KeyActiveID)
	if err != nil {
		s.logger.Error("tree: read failed", slog.String("key", KeyActiveID), slog.String("error", err.Error()))
		return ""
	}
	if !ok || raw == "null" || raw == "undefined" {
		return ""
	}
	return raw
}

// repairLocked restores the tree invariants on loaded data: ids are unique
// and non-empty, kinds are known, parents exist, and folder chains are acyclic.
func (s *Store) repairLocked() {
	seen := make(map[string]struct{}, len(s.files)+len(s.folders))

	folders := make([]models.FolderRecord, 0, len(s.folders))
	for _, f := range s.folders {
		if _, dup := seen[f.ID]; dup || f.ID == "" {
			continue
		}
		seen[f.ID] = struct{}{}
		folders = append(folders, f)
	}

	files := make([]models.FileRecord, 0, len(s.files))
	for _, f := range s.files {
		if _, dup := seen[f.ID]; dup || f.ID == "" {
			continue
		}
		seen[f.ID] = struct{}{}
		if !f.Kind.Valid() {
			f.Kind = models.KindText
		}
		files = append(files, f)
	}

	isFolder := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		isFolder[f.ID] = struct{}{}
	}
	for i := range folders {
		if p := folders[i].ParentID; p != nil {
			if _, ok := isFolder[*p]; !ok {
				folders[i].ParentID = nil
			}
		}
	}
	for i := range files {
		if p := files[i].ParentID; p != nil {
			if _, ok := isFolder[*p]; !ok {
				files[i].ParentID = nil
			}
		}
	}

	// Re-root the first member found of every cycle.
	for i := range folders {
		if wouldCycle(folders, folders[i].ID, folders[i].ParentID) {
			s.logger.Warn("tree: broke folder cycle", slog.String("folder", folders[i].ID))
			folders[i].ParentID = nil
		}
	}

	s.files = files
	s.folders = folders
}
