package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hydroforge",
	Short: "Game portal server with sandboxed loading and synced overlays",
	Long: `HydroForge aggregates browser games from remote manifests, resolves titles
offered by several sources, loads the chosen game into a sandboxed frame and
keeps crosshair, performance readout and control panel settings in sync
across every open tab.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
