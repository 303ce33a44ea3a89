package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/loader"
	mcpserver "github.com/hydroforge/hydroforge/internal/mcp"
	"github.com/hydroforge/hydroforge/internal/overlay"
	"github.com/hydroforge/hydroforge/internal/progress"
	"github.com/hydroforge/hydroforge/internal/resolver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing catalog and overlay tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openSettings(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		holder, err := newCatalog(cfg, progress.Nop{})
		if err != nil {
			return err
		}
		if err := holder.Refresh(cmd.Context()); err != nil {
			// Non-fatal: the refresh_catalog tool can retry.
			fmt.Fprintf(os.Stderr, "Warning: catalog failed to load: %v\n", err)
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "hydroforge MCP server started on stdio (entries=%d)\n", len(holder.Snapshot().Entries))

		srv := mcpserver.NewServer(resolver.NewIndex(holder), loader.NewRouter(cfg.Loader), overlay.NewController(store))
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
