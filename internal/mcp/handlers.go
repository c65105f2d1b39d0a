package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
)

// handleListProjects lists projects with their generation status.
func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing projects failed: %v", err)), nil
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects yet. Create one with `draw2ui projects create`."), nil
	}

	var b strings.Builder
	b.WriteString("# Projects\n\n")
	for _, p := range store.SortByRecent(projects) {
		generated := "no"
		if data, err := s.projects.GetProjectData(ctx, p.ID); err == nil && data.GeneratedHTML != "" {
			generated = "yes"
		}
		fmt.Fprintf(&b, "- **%s** (`%s`), updated %s, generated UI: %s\n",
			p.Name, p.ID, p.UpdatedAt.UTC().Format(time.RFC3339), generated)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleGetProjectHTML returns a project's generated markup.
func (s *Server) handleGetProjectHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project_id"), nil
	}

	data, err := s.projects.GetProjectData(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No project with id %q. Use list_projects to find ids.", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read project: %v", err)), nil
	}
	if data.GeneratedHTML == "" {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Project %q has no generated UI yet. Run `draw2ui generate` or use the editor.", id,
		)), nil
	}

	settings := state.DefaultPreview()
	settings.ThemeColor = request.GetString("theme_color", settings.ThemeColor)
	settings.Font = request.GetString("font", settings.Font)
	if err := preview.Validate(settings); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(preview.Process(data.GeneratedHTML, settings)), nil
}

// handleGetUsage reports the daily quota.
func (s *Server) handleGetUsage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.usage.Check(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading usage failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Generations today: %d of %d used, %d remaining.", status.Used, status.Limit, status.Remaining,
	)), nil
}
