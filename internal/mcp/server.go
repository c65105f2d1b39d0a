package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
)

// Version is set via ldflags at build time.
var Version = "dev"

// ProjectReader is the read side of the project store.
type ProjectReader interface {
	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProjectData(ctx context.Context, id string) (*store.ProjectData, error)
}

// UsageReader reports the daily generation quota.
type UsageReader interface {
	Check(ctx context.Context) (usage.Status, error)
}

// Server wraps an MCP server that exposes draw2ui projects to agents.
type Server struct {
	projects ProjectReader
	usage    UsageReader
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(projects ProjectReader, quota UsageReader) *Server {
	s := &Server{
		projects: projects,
		usage:    quota,
	}

	s.mcp = server.NewMCPServer(
		"draw2ui",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listProjectsTool, s.handleListProjects)
	s.mcp.AddTool(getProjectHTMLTool, s.handleGetProjectHTML)
	s.mcp.AddTool(getUsageTool, s.handleGetUsage)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
