// Package workspace is the editor facade shared by the HTTP API and the MCP
// server: the tree, its live preview, and the console transcript.
package workspace

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/starford/livepad/internal/checksum"
	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/metrics"
	"github.com/starford/livepad/internal/models"
	"github.com/starford/livepad/internal/preview"
	"github.com/starford/livepad/internal/tree"
)

// FileDetail is the full representation of a file.
type FileDetail struct {
	models.FileRecord
	Path     string `json:"path"`
	Language string `json:"language"`
	Checksum string `json:"checksum"`
	Active   bool   `json:"active"`
}

// TreeView lists every folder and file (without content).
type TreeView struct {
	Folders  []models.FolderRecord `json:"folders"`
	Files    []models.FileMeta     `json:"files"`
	ActiveID string                `json:"activeId"`
}

// Children lists the direct children of one folder, or of the root.
type Children struct {
	Folders []models.FolderRecord `json:"folders"`
	Files   []models.FileMeta     `json:"files"`
}

// Service coordinates the tree, the live preview and the console bridge.
type Service struct {
	tree    *tree.Store
	live    *preview.Live
	console *console.Bridge
}

// NewService creates a new workspace service.
func NewService(t *tree.Store, live *preview.Live, bridge *console.Bridge) *Service {
	return &Service{tree: t, live: live, console: bridge}
}

// Tree returns the whole tree without file contents.
func (s *Service) Tree(_ context.Context) TreeView {
	snap := s.tree.Snapshot()
	files := make([]models.FileMeta, len(snap.Files))
	for i, f := range snap.Files {
		files[i] = f.Meta()
	}
	return TreeView{Folders: snap.Folders, Files: files, ActiveID: snap.ActiveID}
}

// Children lists the direct children of parentID (nil for the root).
func (s *Service) Children(_ context.Context, parentID *string) (Children, error) {
	if parentID != nil {
		if _, err := s.tree.Folder(*parentID); err != nil {
			return Children{}, err
		}
	}
	folders, files := s.tree.ChildrenOf(parentID)
	metas := make([]models.FileMeta, len(files))
	for i, f := range files {
		metas[i] = f.Meta()
	}
	return Children{Folders: folders, Files: metas}, nil
}

// GetFile returns a file with its content and path.
func (s *Service) GetFile(_ context.Context, id string) (*FileDetail, error) {
	f, err := s.tree.File(id)
	if err != nil {
		return nil, err
	}
	return s.detail(f), nil
}

// CreateFile creates a file of kind (a kind name such as "html" or "md").
func (s *Service) CreateFile(_ context.Context, name, kind string, parentID *string) (*FileDetail, error) {
	f, err := s.tree.CreateFile(strings.TrimSpace(name), models.Kind(strings.ToLower(kind)), parentID)
	if err != nil {
		return nil, err
	}
	return s.detail(f), nil
}

// UpdateContent replaces a file's content. A non-empty ifMatch must equal the
// current checksum, otherwise apperr.ErrConflict is returned.
func (s *Service) UpdateContent(ctx context.Context, id, content, ifMatch string) (*FileDetail, error) {
	if err := s.tree.UpdateContentIf(id, content, ifMatch); err != nil {
		return nil, err
	}
	return s.GetFile(ctx, id)
}

// Rename renames a file or folder; it reports whether anything changed.
func (s *Service) Rename(_ context.Context, id, name string, isFolder bool) (bool, error) {
	return s.tree.Rename(id, strings.TrimSpace(name), isFolder)
}

// Move reparents a file or folder; it reports false for rejected moves.
func (s *Service) Move(_ context.Context, id string, parentID *string, isFolder bool) (bool, error) {
	return s.tree.Reparent(id, parentID, isFolder)
}

// DeleteFile removes a file.
func (s *Service) DeleteFile(_ context.Context, id string) error {
	return s.tree.DeleteFile(id)
}

// CreateFolder creates an expanded folder.
func (s *Service) CreateFolder(_ context.Context, name string, parentID *string) (models.FolderRecord, error) {
	return s.tree.CreateFolder(strings.TrimSpace(name), parentID)
}

// ToggleFolder flips a folder's expanded flag.
func (s *Service) ToggleFolder(_ context.Context, id string) (bool, error) {
	return s.tree.ToggleExpanded(id)
}

// DeleteFolder removes a folder with everything beneath it.
func (s *Service) DeleteFolder(_ context.Context, id string) error {
	return s.tree.DeleteFolder(id)
}

// SetActive selects the file shown in the editor and preview.
func (s *Service) SetActive(_ context.Context, id string) error {
	return s.tree.SetActive(id)
}

// Reset restores the default project.
func (s *Service) Reset(_ context.Context) {
	s.tree.Reset()
}

// Import adds name/content as a root file. source labels the import metric.
func (s *Service) Import(_ context.Context, name, content, source string) (*FileDetail, error) {
	f, err := s.tree.Import(strings.TrimSpace(name), content)
	if err != nil {
		return nil, err
	}
	metrics.RecordImport(source)
	return s.detail(f), nil
}

// Export writes the project archive to w.
func (s *Service) Export(_ context.Context, w io.Writer) error {
	if err := s.tree.WriteArchive(w); err != nil {
		return fmt.Errorf("workspace: export: %w", err)
	}
	return nil
}

// Preview returns the current preview.
func (s *Service) Preview(_ context.Context) preview.Update {
	return s.live.Current()
}

// RunPreview recomposes the preview now.
func (s *Service) RunPreview(_ context.Context) preview.Update {
	return s.live.Run()
}

// AutoPreview reports whether edits recompose the preview.
func (s *Service) AutoPreview(_ context.Context) bool {
	return s.live.Auto()
}

// SetAutoPreview switches live recomposition.
func (s *Service) SetAutoPreview(_ context.Context, on bool) {
	s.live.SetAuto(on)
}

// ConsoleEntries returns the console transcript.
func (s *Service) ConsoleEntries(_ context.Context) []console.Entry {
	return s.console.Entries()
}

// PostConsole parses raw as a console message and queues it. It reports
// false when the queue was full.
func (s *Service) PostConsole(_ context.Context, raw []byte) (bool, error) {
	m, err := console.Parse(raw)
	if err != nil {
		return false, err
	}
	return s.console.Post(m), nil
}

// ClearConsole empties the transcript.
func (s *Service) ClearConsole(_ context.Context) {
	s.console.Clear()
}

func (s *Service) detail(f models.FileRecord) *FileDetail {
	p, err := s.tree.PathOf(f.ID)
	if err != nil {
		p = f.Name
	}
	active, _ := s.tree.Active()
	return &FileDetail{
		FileRecord: f,
		Path:       p,
		Language:   f.Kind.Language(),
		Checksum:   checksum.String(f.Content),
		Active:     active.ID == f.ID,
	}
}
