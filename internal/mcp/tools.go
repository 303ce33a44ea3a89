package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listGamesTool defines the list_games MCP tool.
var listGamesTool = mcp.NewTool("list_games",
	mcp.WithDescription("List the deduplicated game catalog. Titles offered by several sources are listed once with their version count."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of games to return (default 50)"),
	),
	mcp.WithBoolean("featured_only",
		mcp.Description("Only list featured games"),
	),
	mcp.WithString("query",
		mcp.Description("Case-insensitive substring the title must contain"),
	),
)

// resolveTitleTool defines the resolve_title MCP tool.
var resolveTitleTool = mcp.NewTool("resolve_title",
	mcp.WithDescription("Show every source that provides a title. Selecting any of them loads the same game."),
	mcp.WithString("title",
		mcp.Required(),
		mcp.Description("Game title; case and surrounding whitespace are ignored"),
	),
)

// refreshCatalogTool defines the refresh_catalog MCP tool.
var refreshCatalogTool = mcp.NewTool("refresh_catalog",
	mcp.WithDescription("Fetch every catalog source again and replace the catalog."),
)

// routeGameTool defines the route_game MCP tool.
var routeGameTool = mcp.NewTool("route_game",
	mcp.WithDescription("Explain how a game would be loaded: contact link, direct embed, external link or sandboxed injection, and the capabilities it would run with."),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Source name, e.g. gn-math"),
	),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Entry id within the source"),
	),
)

// getOverlaySettingsTool defines the get_overlay_settings MCP tool.
var getOverlaySettingsTool = mcp.NewTool("get_overlay_settings",
	mcp.WithDescription("Get the persisted crosshair, control panel and performance readout settings."),
)

// resetOverlayTool defines the reset_overlay MCP tool.
var resetOverlayTool = mcp.NewTool("reset_overlay",
	mcp.WithDescription("Restore every overlay setting to its default."),
)
