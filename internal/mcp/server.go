package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/hydroforge/hydroforge/internal/loader"
	"github.com/hydroforge/hydroforge/internal/overlay"
	"github.com/hydroforge/hydroforge/internal/resolver"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the game catalog and overlay
// settings to agents.
type Server struct {
	index   *resolver.Index
	router  *loader.Router
	overlay *overlay.Controller
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(index *resolver.Index, router *loader.Router, ctrl *overlay.Controller) *Server {
	s := &Server{
		index:   index,
		router:  router,
		overlay: ctrl,
	}

	s.mcp = server.NewMCPServer(
		"hydroforge",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listGamesTool, s.handleListGames)
	s.mcp.AddTool(resolveTitleTool, s.handleResolveTitle)
	s.mcp.AddTool(refreshCatalogTool, s.handleRefreshCatalog)
	s.mcp.AddTool(routeGameTool, s.handleRouteGame)
	s.mcp.AddTool(getOverlaySettingsTool, s.handleGetOverlaySettings)
	s.mcp.AddTool(resetOverlayTool, s.handleResetOverlay)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
