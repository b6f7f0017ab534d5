// Package tree holds the virtual file/folder forest and enforces its invariants.
package tree

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/livepad/internal/apperr"
	"github.com/starford/livepad/internal/checksum"
	"github.com/starford/livepad/internal/ident"
	"github.com/starford/livepad/internal/kv"
	"github.com/starford/livepad/internal/models"
)

// idAttempts bounds collision retries when drawing a fresh id.
const idAttempts = 16

// EventKind names a tree mutation.
type EventKind string

// Event kinds published to listeners.
const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventContent EventKind = "content"
	EventDeleted EventKind = "deleted"
	EventMoved   EventKind = "moved"
	EventActive  EventKind = "active"
	EventReset   EventKind = "reset"
)

// Event describes one committed mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	ID       string    `json:"id,omitempty"`
	IsFolder bool      `json:"isFolder,omitempty"`
}

// Listener is called after a mutation has been applied and persisted.
// It runs without the store lock held and may call back into the store.
type Listener func(Event)

// Snapshot is a deep copy of the tree.
type Snapshot struct {
	Files    []models.FileRecord   `json:"files"`
	Folders  []models.FolderRecord `json:"folders"`
	ActiveID string                `json:"activeId,omitempty"`
}

// Store owns the file and folder records. All methods are safe for
// concurrent use; mutations are serialized and snapshotted to the kv store.
type Store struct {
	mu       sync.Mutex
	kv       kv.Store
	ids      ident.Generator
	logger   *slog.Logger
	files    []models.FileRecord
	folders  []models.FolderRecord
	activeID string

	lmu       sync.RWMutex
	listeners []Listener
}

// Load rehydrates a Store from store, bootstrapping the default project when
// no usable file list is found.
func Load(store kv.Store, ids ident.Generator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: store, ids: ids, logger: logger}
	s.mu.Lock()
	s.load()
	s.mu.Unlock()
	return s
}

// Subscribe registers l for every subsequent mutation.
func (s *Store) Subscribe(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Store) emit(ev Event) {
	s.lmu.RLock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}

// Snapshot returns a deep copy of the current tree.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Files:    copyFiles(s.files),
		Folders:  copyFolders(s.folders),
		ActiveID: s.activeID,
	}
}

// Files returns a copy of every file in insertion order.
func (s *Store) Files() []models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFiles(s.files)
}

// File returns the file with id.
func (s *Store) File(id string) (models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fileIndex(id)
	if i < 0 {
		return models.FileRecord{}, apperr.ErrNotFound
	}
	return copyFile(s.files[i]), nil
}

// Folder returns the folder with id.
func (s *Store) Folder(id string) (models.FolderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.folderIndex(id)
	if i < 0 {
		return models.FolderRecord{}, apperr.ErrNotFound
	}
	return copyFolder(s.folders[i]), nil
}

// Active returns the active file, if any.
func (s *Store) Active() (models.FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.fileIndex(s.activeID)
	if i < 0 {
		return models.FileRecord{}, false
	}
	return copyFile(s.files[i]), true
}

// ChildrenOf returns the direct child folders and files of parentID
// (nil for root), each in insertion order.
func (s *Store) ChildrenOf(parentID *string) ([]models.FolderRecord, []models.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folders := []models.FolderRecord{}
	for _, f := range s.folders {
		if models.ParentIs(f.ParentID, parentID) {
			folders = append(folders, copyFolder(f))
		}
	}
	files := []models.FileRecord{}
	for _, f := range s.files {
		if models.ParentIs(f.ParentID, parentID) {
			files = append(files, copyFile(f))
		}
	}
	return folders, files
}

// CreateFile adds a file with default content and makes it active.
func (s *Store) CreateFile(name string, kind models.Kind, parentID *string) (models.FileRecord, error) {
	if name == "" {
		return models.FileRecord{}, apperr.ErrInvalidName
	}
	if !kind.Valid() {
		return models.FileRecord{}, fmt.Errorf("%w: %q", apperr.ErrInvalidKind, kind)
	}
	name = withExt(name, kind)

	s.mu.Lock()
	if parentID != nil && s.folderIndex(*parentID) < 0 {
		s.mu.Unlock()
		return models.FileRecord{}, apperr.ErrNotFound
	}
	f := models.FileRecord{
		ID:       s.newID(),
		Name:     name,
		Kind:     kind,
		Content:  DefaultContent(kind, name),
		ParentID: clonePtr(parentID),
	}
	s.files = append(s.files, f)
	s.activeID = f.ID
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCreated, ID: f.ID})
	return copyFile(f), nil
}

// CreateFolder adds an expanded folder.
func (s *Store) CreateFolder(name string, parentID *string) (models.FolderRecord, error) {
	if name == "" {
		return models.FolderRecord{}, apperr.ErrInvalidName
	}

	s.mu.Lock()
	if parentID != nil && s.folderIndex(*parentID) < 0 {
		s.mu.Unlock()
		return models.FolderRecord{}, apperr.ErrNotFound
	}
	f := models.FolderRecord{
		ID:       s.newID(),
		Name:     name,
		ParentID: clonePtr(parentID),
		Expanded: true,
	}
	s.folders = append(s.folders, f)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCreated, ID: f.ID, IsFolder: true})
	return copyFolder(f), nil
}

// Import adds name/content as a root-level file, inferring its kind from the
// extension, and makes it active.
func (s *Store) Import(name, content string) (models.FileRecord, error) {
	if name == "" {
		return models.FileRecord{}, apperr.ErrInvalidName
	}
	s.mu.Lock()
	f := models.FileRecord{
		ID:      s.newID(),
		Name:    name,
		Kind:    models.KindFromName(name),
		Content: content,
	}
	s.files = append(s.files, f)
	s.activeID = f.ID
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCreated, ID: f.ID})
	return copyFile(f), nil
}

// Rename changes a record's name. It reports false without error when
// newName is empty or unchanged. Files keep their kind's extension.
func (s *Store) Rename(id, newName string, isFolder bool) (bool, error) {
	s.mu.Lock()
	if isFolder {
		i := s.folderIndex(id)
		if i < 0 {
			s.mu.Unlock()
			return false, apperr.ErrNotFound
		}
		if newName == "" || newName == s.folders[i].Name {
			s.mu.Unlock()
			return false, nil
		}
		s.folders[i].Name = newName
	} else {
		i := s.fileIndex(id)
		if i < 0 {
			s.mu.Unlock()
			return false, apperr.ErrNotFound
		}
		if newName == "" {
			s.mu.Unlock()
			return false, nil
		}
		newName = withExt(newName, s.files[i].Kind)
		if newName == s.files[i].Name {
			s.mu.Unlock()
			return false, nil
		}
		s.files[i].Name = newName
	}
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, ID: id, IsFolder: isFolder})
	return true, nil
}

// UpdateContent replaces a file's content.
func (s *Store) UpdateContent(id, content string) error {
	return s.UpdateContentIf(id, content, "")
}

// UpdateContentIf replaces a file's content only while its current content
// hashes to wantSum (see checksum.String). An empty wantSum always writes.
// A mismatch returns apperr.ErrConflict and changes nothing.
func (s *Store) UpdateContentIf(id, content, wantSum string) error {
	s.mu.Lock()
	i := s.fileIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	if wantSum != "" && checksum.String(s.files[i].Content) != wantSum {
		s.mu.Unlock()
		return apperr.ErrConflict
	}
	s.files[i].Content = content
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventContent, ID: id})
	return nil
}

// SetActive makes id the active file.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	if s.fileIndex(id) < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	s.activeID = id
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventActive, ID: id})
	return nil
}

// DeleteFile removes a file. If it was active, the first remaining file
// becomes active, or none.
func (s *Store) DeleteFile(id string) error {
	s.mu.Lock()
	i := s.fileIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	s.files = append(s.files[:i], s.files[i+1:]...)
	if s.activeID == id {
		s.activeID = s.firstFileID()
	}
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventDeleted, ID: id})
	return nil
}

// DeleteFolder removes the folder, every folder beneath it, and every file
// contained in any of them.
func (s *Store) DeleteFolder(id string) error {
	s.mu.Lock()
	if s.folderIndex(id) < 0 {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	closure := descendants(s.folders, id)

	folders := s.folders[:0]
	for _, f := range s.folders {
		if _, gone := closure[f.ID]; !gone {
			folders = append(folders, f)
		}
	}
	s.folders = folders

	activeGone := false
	files := s.files[:0]
	for _, f := range s.files {
		if f.ParentID != nil {
			if _, gone := closure[*f.ParentID]; gone {
				if f.ID == s.activeID {
					activeGone = true
				}
				continue
			}
		}
		files = append(files, f)
	}
	s.files = files
	if activeGone {
		s.activeID = s.firstFileID()
	}
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventDeleted, ID: id, IsFolder: true})
	return nil
}

// Reparent moves a record under newParentID (nil for root). It reports false
// without error when the move is rejected: a folder moved into itself or one
// of its descendants, or a target folder that does not exist.
func (s *Store) Reparent(id string, newParentID *string, isFolder bool) (bool, error) {
	s.mu.Lock()
	if newParentID != nil && s.folderIndex(*newParentID) < 0 {
		s.mu.Unlock()
		return false, nil
	}
	if isFolder {
		i := s.folderIndex(id)
		if i < 0 {
			s.mu.Unlock()
			return false, apperr.ErrNotFound
		}
		if wouldCycle(s.folders, id, newParentID) {
			s.mu.Unlock()
			return false, nil
		}
		s.folders[i].ParentID = clonePtr(newParentID)
	} else {
		i := s.fileIndex(id)
		if i < 0 {
			s.mu.Unlock()
			return false, apperr.ErrNotFound
		}
		s.files[i].ParentID = clonePtr(newParentID)
	}
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventMoved, ID: id, IsFolder: isFolder})
	return true, nil
}

// ToggleExpanded flips a folder's expanded flag and returns the new value.
func (s *Store) ToggleExpanded(id string) (bool, error) {
	s.mu.Lock()
	i := s.folderIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false, apperr.ErrNotFound
	}
	s.folders[i].Expanded = !s.folders[i].Expanded
	expanded := s.folders[i].Expanded
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, ID: id, IsFolder: true})
	return expanded, nil
}

// Reset replaces the whole tree with the default project.
func (s *Store) Reset() {
	s.mu.Lock()
	s.bootstrapLocked()
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventReset})
}

func (s *Store) bootstrapLocked() {
	s.files, s.folders = nil, nil
	for _, f := range defaultProject() {
		f.ID = s.newID()
		s.files = append(s.files, f)
	}
	s.activeID = s.files[0].ID
}

// newID draws an id not used by any file or folder.
func (s *Store) newID() string {
	return ident.Unique(s.ids, func(id string) bool {
		return s.fileIndex(id) >= 0 || s.folderIndex(id) >= 0
	}, idAttempts)
}

func (s *Store) fileIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.files {
		if s.files[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) folderIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.folders {
		if s.folders[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) firstFileID() string {
	if len(s.files) == 0 {
		return ""
	}
	return s.files[0].ID
}

// wouldCycle reports whether placing folder child under parent would make
// child its own ancestor. The walk is bounded by the folder count, so a
// pre-existing cycle in parent's chain is also reported.
func wouldCycle(folders []models.FolderRecord, child string, parent *string) bool {
	parentOf := make(map[string]*string, len(folders))
	for _, f := range folders {
		parentOf[f.ID] = f.ParentID
	}
	cur := parent
	for steps := 0; cur != nil; steps++ {
		if *cur == child || steps > len(folders) {
			return true
		}
		cur = parentOf[*cur]
	}
	return false
}

// descendants returns root and every folder whose parent chain reaches it.
func descendants(folders []models.FolderRecord, root string) map[string]struct{} {
	children := make(map[string][]string, len(folders))
	for _, f := range folders {
		if f.ParentID != nil {
			children[*f.ParentID] = append(children[*f.ParentID], f.ID)
		}
	}
	closure := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			if _, seen := closure[c]; !seen {
				closure[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}
	return closure
}

// withExt appends kind's extension unless name already ends with it.
func withExt(name string, kind models.Kind) string {
	if strings.HasSuffix(name, kind.Ext()) {
		return name
	}
	return name + kind.Ext()
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFile(f models.FileRecord) models.FileRecord {
	f.ParentID = clonePtr(f.ParentID)
	return f
}

func copyFolder(f models.FolderRecord) models.FolderRecord {
	f.ParentID = clonePtr(f.ParentID)
	return f
}

func copyFiles(in []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(in))
	for i, f := range in {
		out[i] = copyFile(f)
	}
	return out
}

func copyFolders(in []models.FolderRecord) []models.FolderRecord {
	out := make([]models.FolderRecord, len(in))
	for i, f := range in {
		out[i] = copyFolder(f)
	}
	return out
}
