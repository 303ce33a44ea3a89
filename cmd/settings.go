package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change persisted overlay and app settings",
	Long: `Reads and writes the settings shared with running servers. Changes made
here reach connected browser tabs within one poll interval.`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Changes a setting. The value is JSON; bare words are taken as strings, so
"hydroforge settings set theme light" works without quoting.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset [key...]",
	Short: "Restore settings to their defaults",
	RunE:  runSettingsReset,
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openSettings(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if len(args) == 1 {
		v, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printValue(v)
	}

	all, err := store.All(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, k := range store.Schema().Keys() {
		data, _ := json.Marshal(all[k])
		fmt.Fprintf(w, "%s\t%s\n", k, data)
	}
	return w.Flush()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openSettings(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.Set(cmd.Context(), args[0], parseValue(args[1])); err != nil {
		return err
	}
	v, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printValue(v)
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openSettings(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.Reset(cmd.Context(), args...); err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "All settings restored to defaults.")
	} else {
		fmt.Fprintf(os.Stderr, "Restored %d setting(s) to defaults.\n", len(args))
	}
	return nil
}

// parseValue treats arguments that are not valid JSON as strings.
func parseValue(arg string) json.RawMessage {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}
	quoted, _ := json.Marshal(arg)
	return quoted
}

func printValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// settingsKeys completes key arguments.
func settingsKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return settings.DefaultSchema().Keys(), cobra.ShellCompDirectiveNoFileComp
}

func init() {
	settingsGetCmd.ValidArgsFunction = settingsKeys
	settingsSetCmd.ValidArgsFunction = settingsKeys
	settingsResetCmd.ValidArgsFunction = settingsKeys

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}
