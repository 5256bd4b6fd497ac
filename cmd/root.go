// Package cmd wires the CLI surface. Commands are thin: validation,
// lock, and storage failures from the core surface here as non-zero
// exits with a message, never as stack traces.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "queuectl",
	Short:         "A persistent background job queue for shell commands",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute registers every command and runs the CLI. Exits non-zero on
// any command failure.
func Execute(store *storage.Store, q *queue.Manager, cfg *config.Config, dataDir string, logger *slog.Logger) {
	rootCmd.AddCommand(EnqueueCmd(q))
	rootCmd.AddCommand(ListCmd(store))
	rootCmd.AddCommand(StatusCmd(store, dataDir))
	rootCmd.AddCommand(WorkerCmd(q, cfg, dataDir, logger))
	rootCmd.AddCommand(DlqCmd(store, q))
	rootCmd.AddCommand(ConfigCmd(cfg))
	rootCmd.AddCommand(CleanupCmd(q))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
