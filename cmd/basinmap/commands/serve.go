package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/db"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/logger"
	"github.com/hydrofabric/basinmap/server"
)

// ServeCmd starts the basinmap web server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the basinmap server",
	Long: `Launch the basinmap server: the HTTP map data API plus the WebSocket
overlay stream that keeps connected browsers in sync with the server-side
selection.`,
	RunE: runServe,
}

var (
	serveHost       string
	servePort       int
	serveHydroPath  string
	serveNoJobQueue bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().StringVar(&serveHydroPath, "hydrofabric", "", "Hydrofabric database path (overrides config)")
	ServeCmd.Flags().BoolVar(&serveNoJobQueue, "no-job-queue", false, "Run subset/forcings jobs inline instead of through the queue")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveHydroPath != "" {
		cfg.Hydrofabric.Path = serveHydroPath
	}

	log := logger.Named("server")

	// The hydrofabric database is reference data; the server never writes it.
	hydroDB, err := db.OpenReadOnly(cfg.Hydrofabric.Path, log)
	if err != nil {
		return errors.Wrapf(err, "failed to open hydrofabric database %s", cfg.Hydrofabric.Path)
	}
	defer hydroDB.Close()
	store := hydrofabric.NewStore(hydroDB, log)

	var jobStore *jobs.Store
	if !serveNoJobQueue {
		jobDB, err := db.OpenWithMigrations(cfg.Jobs.DBPath, log)
		if err != nil {
			return errors.Wrapf(err, "failed to open job database %s", cfg.Jobs.DBPath)
		}
		defer jobDB.Close()
		jobStore = jobs.NewStore(jobDB)
	}

	srv := server.New(cfg, store, jobStore, log)

	printServeBanner(cfg)

	// Re-apply engine tuning when the config file changes on disk.
	var watcher *config.ConfigWatcher
	if path := config.ConfigFilePath(); path != "" {
		watcher, err = config.NewConfigWatcher(path)
		if err != nil {
			log.Warnw("Config watcher unavailable", "file", path, "error", err)
		} else {
			watcher.OnReload(func(next *config.Config) error {
				srv.Engine().SetRateLimit(next.Engine.FetchesPerSecond, next.Engine.FetchBurst)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(context.Background())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownDone <- srv.Shutdown(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
