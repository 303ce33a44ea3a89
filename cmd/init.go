package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hydroforge configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure sources and the trusted content hosts, and writes a .hydroforge.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
