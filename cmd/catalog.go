package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/loader"
	"github.com/hydroforge/hydroforge/internal/progress"
	"github.com/hydroforge/hydroforge/internal/resolver"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Fetch and inspect the game catalog",
	Long:  `Fetches every configured source and prints the deduplicated catalog.`,
	RunE:  runCatalogList,
}

var catalogResolveCmd = &cobra.Command{
	Use:   "resolve <title>",
	Short: "Show every source offering a title",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogResolve,
}

var catalogRouteCmd = &cobra.Command{
	Use:   "route <source> <id>",
	Short: "Show how an entry would be loaded",
	Args:  cobra.ExactArgs(2),
	RunE:  runCatalogRoute,
}

// fetchGroups loads the catalog once, reporting progress on stderr.
func fetchGroups(ctx context.Context) (*catalog.Holder, *resolver.Groups, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	holder, err := newCatalog(cfg, progress.NewReporter())
	if err != nil {
		return nil, nil, err
	}
	if err := holder.Refresh(ctx); err != nil {
		return nil, nil, err
	}
	groups, _ := resolver.NewIndex(holder).Current()
	return holder, groups, nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	dupsOnly, _ := cmd.Flags().GetBool("duplicates")

	_, groups, err := fetchGroups(cmd.Context())
	if err != nil {
		return err
	}

	listing := groups.Listing()
	if dupsOnly {
		var dups []catalog.Entry
		for _, e := range listing {
			if g, _ := groups.GroupOf(e); len(g) > 1 {
				dups = append(dups, e)
			}
		}
		listing = dups
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tSOURCE\tID\tVERSIONS")
	for _, e := range listing {
		g, _ := groups.GroupOf(e)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", e.Title, e.Source, e.ID, len(g))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "%d titles\n", len(listing))
	}
	return nil
}

func runCatalogResolve(cmd *cobra.Command, args []string) error {
	_, groups, err := fetchGroups(cmd.Context())
	if err != nil {
		return err
	}
	grp, ok := groups.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no game titled %q", args[0])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tSOURCE\tID\tURL")
	for i, e := range grp {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", i+1, e.Title, e.Source, e.ID, e.ContentURL)
	}
	return w.Flush()
}

func runCatalogRoute(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[1], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	holder, _, err := fetchGroups(cmd.Context())
	if err != nil {
		return err
	}
	e, ok := holder.Find(args[0], id)
	if !ok {
		return fmt.Errorf("no entry %s:%d", args[0], id)
	}

	strategy, err := loader.NewRouter(cfg.Loader).Route(e)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s): %s\n", e.Title, e.Key(), strategy)
	switch strategy {
	case loader.StrategyInject:
		fmt.Printf("  sandbox: %s\n", loader.InjectCapabilities().SandboxAttr())
	case loader.StrategyDirect:
		caps := loader.DirectCapabilities()
		fmt.Printf("  sandbox: %s\n  allow: %s\n", caps.SandboxAttr(), caps.AllowAttr())
	default:
		fmt.Printf("  opens: %s\n", e.ContentURL)
	}
	return nil
}

func init() {
	catalogCmd.Flags().Bool("json", false, "Output as JSON")
	catalogCmd.Flags().Bool("duplicates", false, "Only list titles offered by more than one source")

	catalogCmd.AddCommand(catalogResolveCmd)
	catalogCmd.AddCommand(catalogRouteCmd)
	rootCmd.AddCommand(catalogCmd)
}
