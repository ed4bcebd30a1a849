package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/config"
	"github.com/seedlab/sprout/internal/home"
	"github.com/seedlab/sprout/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Sprout server",
	Long: `Start the Sprout HTTP server.

This starts the HTTP API server and, unless docstore.managed is
disabled, the CouchDB container. When the server shuts down (via
Ctrl+C or SIGTERM), in-flight generation runs are drained and CouchDB
is stopped.

The server provides:
  - /health            - Basic server health check
  - /ready             - Readiness check (includes CouchDB status)
  - /api/plants        - Seed packet submission

Examples:
  sprout serve                    # Start on default port 8080
  sprout serve --port 3000        # Start on custom port
  sprout serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// First run: write a commented default config next to the data.
		if cfgFile == "" && !h.ConfigExists() {
			if err := config.WriteDefault(h.ConfigPath()); err != nil {
				return fmt.Errorf("failed to write default config: %w", err)
			}
			logger.Info("wrote default config", "path", h.ConfigPath())
		}

		configMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		configMgr.WatchConfig()

		couchDataPath := h.DataPath()
		if err := os.MkdirAll(couchDataPath, 0o755); err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			CouchDataPath: couchDataPath,
			ConfigManager: configMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
