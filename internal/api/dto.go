package api

import "github.com/starford/livepad/internal/workspace"

// CreateFileRequest is the request body for creating a file.
type CreateFileRequest struct {
	Name     string  `json:"name" example:"about"`
	Kind     string  `json:"kind" example:"html" enums:"html,css,js,json,txt,md"`
	ParentID *string `json:"parentId"`
}

// CreateFolderRequest is the request body for creating a folder.
type CreateFolderRequest struct {
	Name     string  `json:"name" example:"src"`
	ParentID *string `json:"parentId"`
}

// UpdateContentRequest is the request body for replacing file content.
type UpdateContentRequest struct {
	Content string `json:"content"`
}

// RenameRequest renames a file or folder.
type RenameRequest struct {
	Name string `json:"name" example:"bar"`
}

// MoveRequest reparents a file or folder; a null parentId means the root.
type MoveRequest struct {
	ParentID *string `json:"parentId"`
}

// SetActiveRequest selects the active file.
type SetActiveRequest struct {
	ID string `json:"id"`
}

// AutoPreviewRequest switches live preview updates.
type AutoPreviewRequest struct {
	Auto bool `json:"auto"`
}

// FileDetail is the full file response (aliased from the domain layer).
type FileDetail = workspace.FileDetail

// RenameResponse reports whether a rename changed anything.
type RenameResponse struct {
	Renamed bool `json:"renamed"`
}

// MoveResponse reports whether a move was applied.
type MoveResponse struct {
	Moved bool `json:"moved"`
}

// ToggleResponse carries a folder's new expanded state.
type ToggleResponse struct {
	Expanded bool `json:"expanded"`
}

// ConsolePostResponse reports whether a relayed message was queued.
type ConsolePostResponse struct {
	Queued bool `json:"queued"`
}
