package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/runner"
	"github.com/srujanreddy27/queuectl/internal/worker"
)

// WorkerCmd starts and stops the worker pool.
func WorkerCmd(q *queue.Manager, cfg *config.Config, dataDir string, logger *slog.Logger) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pool of workers (blocks until stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			pool := worker.NewPool(q, runner.New(), cfg, dataDir, count, logger)
			return pool.Run(context.Background())
		},
	}
	startCmd.Flags().Int("count", 1, "Number of workers to start")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running worker pool to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := worker.SignalStop(dataDir)
			if errors.Is(err, worker.ErrNotRunning) {
				fmt.Println("No worker pool is running.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Stop signal sent to worker pool (pid %d).\n", pid)
			return nil
		},
	}

	workerCmd.AddCommand(startCmd)
	workerCmd.AddCommand(stopCmd)
	return workerCmd
}
