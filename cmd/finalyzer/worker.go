package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finalyzer/finalyzer/internal/analyzer"
	"github.com/finalyzer/finalyzer/internal/config"
	"github.com/finalyzer/finalyzer/internal/engine"
	"github.com/finalyzer/finalyzer/internal/home"
	"github.com/finalyzer/finalyzer/internal/queue"
	"github.com/finalyzer/finalyzer/internal/store"
)

var workerCount int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run analysis workers against a NATS queue",
	Long: `Run a standalone analysis worker process.

Workers join the configured NATS queue group, so jobs are distributed
across all worker processes. The queue driver must be "nats"; with the
memory driver the server runs its own workers.

Examples:
  finalyzer worker                 # Run with configured worker count
  finalyzer worker --workers 8     # Override worker count`,
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

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()
		cfg := cfgMgr.Get()

		if cfg.Queue.Driver != "nats" {
			return fmt.Errorf("standalone workers require queue.driver=nats (got %q)", cfg.Queue.Driver)
		}

		dbPath := cfg.Storage.DatabasePath
		if dbPath == "" {
			dbPath = h.DatabasePath()
		}
		jobStore, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer jobStore.Close()

		jobQueue, err := queue.ConnectNATS(queue.NATSOptions{
			URL:        cfg.Queue.URL,
			Subject:    cfg.Queue.Subject,
			QueueGroup: cfg.Queue.QueueGroup,
		})
		if err != nil {
			return err
		}
		defer jobQueue.Close()

		engines := engine.NewRegistry()
		if err := engines.Reload(workerEngineOptions(cfg)); err != nil {
			return err
		}
		cfgMgr.OnChange(func(c *config.Config) {
			if err := engines.Reload(workerEngineOptions(c)); err != nil {
				logger.Error("engine reload failed", "error", err)
				return
			}
			logger.Info("engine registry reloaded from config")
		})

		processor := analyzer.NewProcessor(analyzer.Config{
			Store:            jobStore,
			Engine:           engines,
			MaxDocumentChars: cfg.Engine.MaxDocumentChars,
			Logger:           logger,
		})

		count := workerCount
		if count == 0 {
			count = cfg.Workers.Count
		}
		pool := analyzer.NewPool(analyzer.PoolConfig{
			Queue:      jobQueue,
			Processor:  processor,
			Count:      count,
			JobTimeout: time.Duration(cfg.Workers.JobTimeoutSeconds) * time.Second,
			Logger:     logger,
		})

		logger.Info("worker starting", "nats", cfg.Queue.URL, "subject", cfg.Queue.Subject, "group", cfg.Queue.QueueGroup)
		return pool.Run(ctx)
	},
}

func workerEngineOptions(c *config.Config) engine.Options {
	return engine.Options{
		Model:           c.Engine.Model,
		APIKey:          config.ResolveEnvVars(c.Engine.APIKey),
		BaseURL:         c.Engine.BaseURL,
		Temperature:     c.Engine.Temperature,
		Timeout:         time.Duration(c.Engine.TimeoutSeconds) * time.Second,
		VerifyMaxTurns:  c.Engine.VerifyMaxTurns,
		AnalyzeMaxTurns: c.Engine.AnalyzeMaxTurns,
	}
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "Number of workers (default from config)")

	rootCmd.AddCommand(workerCmd)
}
