// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes livepad tools for LLM integration. The HTTP server mounts it
// in-process over streamable HTTP; stdio is for a store no server is using.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/livepad/internal/apperr"
	"github.com/starford/livepad/internal/workspace"
)

const guideURI = "livepad://guide"

// Server wraps the MCP server with livepad tools.
type Server struct {
	mcp *server.MCPServer
	svc *workspace.Service
}

// New creates a new MCP server with all livepad tools registered.
func New(svc *workspace.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Livepad",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List every file as path, id and kind, one per line. The active file is marked with *."),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the full content of a file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id as shown by list_files")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a file at the project root, optionally with content, and make it active. "+
			"Read the project guide first via get_project_guide or the livepad://guide resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name; the kind's extension is appended when missing")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("One of html, css, js, json, txt, md")),
		mcp.WithString("content", mcp.Description("Initial content; the kind's starter template when omitted")),
		mcp.WithString("folder_id", mcp.Description("Optional parent folder id")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("update_file",
		mcp.WithDescription("Replace the content of a file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content")),
		mcp.WithString("checksum", mcp.Description("Optional SHA-256 of the content being replaced; the update fails if it changed")),
	), s.updateFile)

	s.mcp.AddTool(mcp.NewTool("set_active",
		mcp.WithDescription("Select the file shown in the editor and preview."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id")),
	), s.setActive)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("Import a text file from an http(s) URL or a base64 data URI. "+
			"The kind is inferred from the file name extension."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("Optional file name (derived from the URL when omitted)")),
	), s.importFile)

	s.mcp.AddTool(mcp.NewTool("compose_preview",
		mcp.WithDescription("Compose the preview of the active file now and return the standalone HTML document."),
	), s.composePreview)

	s.mcp.AddTool(mcp.NewTool("read_console",
		mcp.WithDescription("Read console output captured from the preview, oldest first."),
	), s.readConsole)

	s.mcp.AddTool(mcp.NewTool("get_project_guide",
		mcp.WithDescription("Returns the livepad project guide: file kinds and how previews are composed."),
	), s.getProjectGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Project Guide",
			mcp.WithResourceDescription("How livepad interprets project files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the tools over streamable HTTP. It is stateless: every
// POST carries one JSON-RPC message and gets its answer in the response.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// optString returns an optional string argument, or "" when absent.
func optString(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return v
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the file changed, read it again")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listFiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.svc.Tree(ctx)
	if len(view.Files) == 0 {
		return mcp.NewToolResultText("no files"), nil
	}
	lines := make([]string, 0, len(view.Files))
	for _, f := range view.Files {
		d, err := s.svc.GetFile(ctx, f.ID)
		if err != nil {
			continue
		}
		mark := " "
		if d.Active {
			mark = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s\t%s\t%s", mark, d.Path, d.ID, d.Kind))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.GetFile(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(f.Content), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var parent *string
	if p := optString(req, "folder_id"); p != "" {
		parent = &p
	}

	f, err := s.svc.CreateFile(ctx, name, kind, parent)
	if err != nil {
		return toolError(err), nil
	}
	if content := optString(req, "content"); content != "" {
		if f, err = s.svc.UpdateContent(ctx, f.ID, content, ""); err != nil {
			return toolError(err), nil
		}
	}
	return jsonResult(map[string]string{"id": f.ID, "path": f.Path, "checksum": f.Checksum})
}

func (s *Server) updateFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.UpdateContent(ctx, id, content, optString(req, "checksum"))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", f.Path, f.Checksum)), nil
}

func (s *Server) setActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.SetActive(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("active: " + id), nil
}

func (s *Server) composePreview(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u := s.svc.RunPreview(ctx)
	if u.Document.Empty() {
		return mcp.NewToolResultText("no active file"), nil
	}
	return mcp.NewToolResultText(u.Document.HTML), nil
}

func (s *Server) readConsole(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.svc.ConsoleEntries(ctx)
	if len(entries) == 0 {
		return mcp.NewToolResultText("console is empty"), nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.LogType, e.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getProjectGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     ProjectGuide,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
