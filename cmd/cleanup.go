package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/queue"
)

// CleanupCmd removes aged completed jobs. Nothing else ever deletes a
// job, so this is deliberately an explicit operator action.
func CleanupCmd(q *queue.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove completed jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			removed, err := q.CleanupCompleted(olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d completed job(s).\n", removed)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 24*time.Hour, "Only remove jobs completed longer ago than this")
	return cmd
}
