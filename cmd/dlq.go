package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

// DlqCmd manages the dead letter queue: jobs that exhausted their
// retry budget and need operator action.
func DlqCmd(store *storage.Store, q *queue.Manager) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the Dead Letter Queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all jobs in the DLQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := store.ListByState(model.StateDead)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("Dead Letter Queue is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tATTEMPTS\tCOMMAND\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n", j.ID, j.Attempts, j.MaxRetries, j.Command, j.LastError)
			}
			w.Flush()
			return nil
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a job from the DLQ back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := q.RetryDead(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no job with id %q in the dead state", args[0])
			}
			fmt.Printf("Job %s moved from DLQ to pending.\n", args[0])
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd)
	dlqCmd.AddCommand(retryCmd)
	return dlqCmd
}
