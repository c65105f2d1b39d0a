package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/draw2ui/internal/preview"
)

// listProjectsTool defines the list_projects MCP tool.
var listProjectsTool = mcp.NewTool("list_projects",
	mcp.WithDescription("List draw2ui projects, most recently updated first, with whether each has generated UI."),
)

// getProjectHTMLTool defines the get_project_html MCP tool.
var getProjectHTMLTool = mcp.NewTool("get_project_html",
	mcp.WithDescription("Get the HTML generated from a project's sketch, optionally with the preview colour and font applied."),
	mcp.WithString("project_id",
		mcp.Required(),
		mcp.Description("Project id as returned by list_projects"),
	),
	mcp.WithString("theme_color",
		mcp.Description("Accent palette to substitute (default zinc, which leaves the markup unchanged)"),
		mcp.Enum(preview.Colors...),
	),
	mcp.WithString("font",
		mcp.Description("Font utility class to substitute for font-sans"),
		mcp.Enum(preview.Fonts...),
	),
)

// getUsageTool defines the get_usage MCP tool.
var getUsageTool = mcp.NewTool("get_usage",
	mcp.WithDescription("Get today's generation quota: used, remaining and the daily limit."),
)
