package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/loader"
	"github.com/hydroforge/hydroforge/internal/resolver"
)

// handleListGames lists the canonical entry of every title.
func (s *Server) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, snap := s.index.Current()
	if snap.State != catalog.StateReady {
		return mcp.NewToolResultError(catalogUnavailable(snap)), nil
	}

	limit := request.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	featuredOnly := request.GetBool("featured_only", false)
	query := resolver.Normalize(request.GetString("query", ""))

	var sb strings.Builder
	n := 0
	for _, e := range groups.Listing() {
		if featuredOnly && !e.Featured {
			continue
		}
		if query != "" && !strings.Contains(resolver.Normalize(e.Title), query) {
			continue
		}
		if n == limit {
			sb.WriteString("...\n")
			break
		}
		grp, _ := groups.GroupOf(e)
		fmt.Fprintf(&sb, "- %s [%s]", e.Title, e.Key())
		if len(grp) > 1 {
			fmt.Fprintf(&sb, " (%d versions)", len(grp))
		}
		if e.Featured {
			sb.WriteString(" *featured*")
		}
		sb.WriteString("\n")
		n++
	}

	if n == 0 {
		return mcp.NewToolResultText("No games match."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d game(s):\n%s", n, sb.String())), nil
}

// handleResolveTitle lists every entry sharing a title.
func (s *Server) handleResolveTitle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	groups, snap := s.index.Current()
	if snap.State != catalog.StateReady {
		return mcp.NewToolResultError(catalogUnavailable(snap)), nil
	}

	grp, ok := groups.Lookup(title)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No game titled %q.", title)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%q is provided by %d source(s):\n", resolver.CanonicalOf(grp).Title, len(grp))
	for i, e := range grp {
		fmt.Fprintf(&sb, "%d. %s (source %s, id %d)\n   %s\n", i+1, e.Title, e.Source, e.ID, e.ContentURL)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleRefreshCatalog refetches the catalog.
func (s *Server) handleRefreshCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.index.Holder().Refresh(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("catalog refresh failed: %v", err)), nil
	}
	snap := s.index.Holder().Snapshot()
	return mcp.NewToolResultText(fmt.Sprintf("Catalog loaded: %d entries.", len(snap.Entries))), nil
}

// handleRouteGame reports the loading strategy for an entry without
// loading it.
func (s *Server) handleRouteGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: source"), nil
	}
	id, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	e, ok := s.index.Holder().Find(source, id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No entry %s:%d.", source, id)), nil
	}

	strategy, err := s.router.Route(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s cannot be loaded: %v", e.Title, err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s) -> %s\n", e.Title, e.Key(), strategy)
	switch strategy {
	case loader.StrategyInject:
		caps := loader.InjectCapabilities()
		fmt.Fprintf(&sb, "Fetched and injected into a sandboxed frame.\nsandbox: %s\n", caps.SandboxAttr())
	case loader.StrategyDirect:
		caps := loader.DirectCapabilities()
		fmt.Fprintf(&sb, "Embedded by address.\nsandbox: %s\nallow: %s\n", caps.SandboxAttr(), caps.AllowAttr())
	default:
		fmt.Fprintf(&sb, "Opens %s outside the viewer; no session is created.\n", e.ContentURL)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetOverlaySettings returns the overlay aggregate as JSON.
func (s *Server) handleGetOverlaySettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings, err := s.overlay.Settings(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read overlay settings: %v", err)), nil
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode overlay settings: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleResetOverlay clears every overlay override.
func (s *Server) handleResetOverlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.overlay.Reset(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to reset overlay: %v", err)), nil
	}
	return mcp.NewToolResultText("Overlay settings restored to defaults."), nil
}

func catalogUnavailable(snap catalog.Snapshot) string {
	if snap.State == catalog.StateFailed {
		return "The catalog failed to load. Try refresh_catalog."
	}
	return "The catalog is still loading. Try again shortly or call refresh_catalog."
}
