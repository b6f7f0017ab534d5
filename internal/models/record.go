// Package models defines the domain types for livepad.
package models

import (
	"encoding/json"
	"path"
	"strings"
)

// Kind is the closed set of file kinds the editor understands.
type Kind string

// Supported file kinds. The string value doubles as the file extension.
const (
	KindHTML     Kind = "html"
	KindCSS      Kind = "css"
	KindJS       Kind = "js"
	KindJSON     Kind = "json"
	KindText     Kind = "txt"
	KindMarkdown Kind = "md"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindHTML, KindCSS, KindJS, KindJSON, KindText, KindMarkdown}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindHTML, KindCSS, KindJS, KindJSON, KindText, KindMarkdown:
		return true
	}
	return false
}

// Ext returns the extension (with leading dot) used for files of kind k.
func (k Kind) Ext() string {
	return "." + string(k)
}

// Language returns the editor language identifier for k.
func (k Kind) Language() string {
	switch k {
	case KindHTML:
		return "html"
	case KindCSS:
		return "css"
	case KindJS:
		return "javascript"
	case KindJSON:
		return "json"
	case KindMarkdown:
		return "markdown"
	default:
		return "plaintext"
	}
}

// KindFromName infers a kind from a file name's extension.
// Unknown or missing extensions map to KindText.
func KindFromName(name string) Kind {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "html", "htm":
		return KindHTML
	case "css":
		return KindCSS
	case "js":
		return KindJS
	case "json":
		return KindJSON
	case "md":
		return KindMarkdown
	default:
		return KindText
	}
}

// FileRecord is a file in the virtual tree.
type FileRecord struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

// UnmarshalJSON reads "kind", falling back to "type" so snapshots saved by
// the browser-only editor (which named the field "type") load unchanged.
func (f *FileRecord) UnmarshalJSON(data []byte) error {
	type plain FileRecord
	var aux struct {
		plain
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Kind == "" {
		aux.Kind = aux.Type
	}
	*f = FileRecord(aux.plain)
	return nil
}

// FolderRecord is a folder in the virtual tree.
type FolderRecord struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
	Expanded bool    `json:"expanded"`
}

// FileMeta is a FileRecord without its content, returned by listings.
type FileMeta struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	ParentID *string `json:"parentId"`
}

// Meta strips the content from f.
func (f FileRecord) Meta() FileMeta {
	return FileMeta{ID: f.ID, Name: f.Name, Kind: f.Kind, ParentID: f.ParentID}
}

// ParentIs reports whether the parent pointer p refers to id (nil means root).
func ParentIs(p *string, id *string) bool {
	if p == nil || id == nil {
		return p == nil && id == nil
	}
	return *p == *id
}

// StrPtr returns a pointer to a copy of s.
func StrPtr(s string) *string {
	return &s
}
