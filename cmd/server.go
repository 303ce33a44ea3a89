package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydroforge/hydroforge/internal/catalog"
	"github.com/hydroforge/hydroforge/internal/config"
	"github.com/hydroforge/hydroforge/internal/loader"
	"github.com/hydroforge/hydroforge/internal/overlay"
	"github.com/hydroforge/hydroforge/internal/progress"
	"github.com/hydroforge/hydroforge/internal/resolver"
	"github.com/hydroforge/hydroforge/internal/server"
	"github.com/hydroforge/hydroforge/internal/settings"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HydroForge server",
	Long:  `Starts the HydroForge server with the catalog, loader, settings and overlay APIs and the /ws/settings push channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, store, err := openSettings(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		holder, err := newCatalog(cfg, progress.Nop{})
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Port:     cfg.Port,
			AllowAll: cfg.AllowAllOrigins,
		}, database)

		registerAllRoutes(ctx, srv, cfg, holder, store)

		// Picks up writes from other processes sharing the database.
		go store.Watch(ctx)

		go func() {
			if err := holder.Refresh(ctx); err != nil {
				log.Printf("catalog: initial load: %v", err)
			}
		}()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "hydroforge server %s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Sources: %d\n", len(cfg.Sources))

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// registerAllRoutes wires up every feature's routes. Background work tied
// to the routes stops when ctx is cancelled.
func registerAllRoutes(ctx context.Context, srv *server.Server, cfg *config.Config, holder *catalog.Holder, store *settings.Store) {
	r := srv.Router()

	// Catalog
	catalog.RegisterRoutes(r, holder)
	resolver.RegisterRoutes(r, resolver.NewIndex(holder))

	// Loader
	ld := loader.New(loader.NewRouter(cfg.Loader), newHTTPClient(cfg))
	sessions := loader.NewRegistry()
	loader.RegisterRoutes(r, ld, sessions, holder)
	go sessions.Sweep(ctx, ld, time.Minute, cfg.Loader.SessionTTL)

	// Overlay and settings
	readout := overlay.NewReadout()
	overlay.RegisterRoutes(r, overlay.NewController(store), readout)
	settings.RegisterRoutes(r, store, settings.Options{
		PingInterval: cfg.PingInterval,
		Observer:     readout,
	})
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
