package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/model"
	"github.com/srujanreddy27/queuectl/internal/storage"
	"github.com/srujanreddy27/queuectl/internal/worker"
)

// ListCmd lists jobs, optionally filtered by state and capped by limit.
func ListCmd(store *storage.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateFlag, _ := cmd.Flags().GetString("state")
			limit, _ := cmd.Flags().GetInt("limit")

			var jobs []model.Job
			var err error
			if stateFlag != "" {
				state := model.State(stateFlag)
				if !state.Valid() {
					return fmt.Errorf("unknown state %q (valid: %v)", stateFlag, model.States)
				}
				jobs, err = store.ListByState(state)
			} else {
				jobs, err = store.All()
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(jobs) > limit {
				jobs = jobs[:limit]
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}
			printJobs(jobs)
			return nil
		},
	}
	cmd.Flags().String("state", "", "Filter by state (pending, processing, completed, failed, dead)")
	cmd.Flags().Int("limit", 0, "Show at most N jobs (0 = all)")
	return cmd
}

// StatusCmd prints a per-state job summary plus the worker pool's
// liveness record.
func StatusCmd(store *storage.Store, dataDir string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and worker pool status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := store.Stats()
			if err != nil {
				return err
			}

			fmt.Println("--- Job Queue Status ---")
			total := 0
			for _, state := range model.States {
				fmt.Printf("%-12s %d\n", state+":", stats[state])
				total += stats[state]
			}
			fmt.Printf("%-12s %d\n", "total:", total)

			fmt.Println("\n--- Worker Pool ---")
			st, err := worker.ReadStatus(dataDir)
			if err != nil {
				return fmt.Errorf("read worker status: %w", err)
			}
			if !st.Alive() {
				fmt.Println("Workers:     0 (stopped)")
				return nil
			}
			fmt.Printf("Workers:     %d (pid %d, started %s)\n",
				len(st.WorkerIDs), st.PID, st.StartedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func printJobs(jobs []model.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCREATED\tCOMMAND")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries,
			j.CreatedAt.Format("2006-01-02 15:04:05"), j.Command)
	}
	w.Flush()
}
