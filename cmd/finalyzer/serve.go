package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/config"
	"github.com/finalyzer/finalyzer/internal/home"
	"github.com/finalyzer/finalyzer/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the finalyzer server",
	Long: `Start the finalyzer HTTP server.

With the default memory queue driver the server also runs the analysis
workers in-process. With the nats driver, run separate workers with
"finalyzer worker".

The server provides:
  - POST /api/analyze       - Enqueue a document analysis job
  - POST /api/analyze/sync  - Analyze a document and wait for the result
  - GET  /api/analyze/{id}  - Poll a job for status and result
  - GET  /api/jobs          - List recent jobs
  - GET  /health, /ready    - Health and readiness checks

Examples:
  finalyzer serve                  # Start on default port 8000
  finalyzer serve --port 3000      # Start on custom port
  finalyzer serve --host 127.0.0.1 # Bind to localhost only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		cfg := cfgMgr.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cfgMgr,
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
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
