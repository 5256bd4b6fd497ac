package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/queue"
)

// jobPayload is the JSON form of an enqueue argument.
type jobPayload struct {
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries"`
}

// EnqueueCmd adds a job to the queue. The argument is either a raw
// shell command or a JSON payload with "command" and optional
// "max_retries".
func EnqueueCmd(q *queue.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   `enqueue <command|json>`,
		Short: "Add a job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			retries := -1

			if strings.HasPrefix(strings.TrimSpace(command), "{") {
				var payload jobPayload
				if err := json.Unmarshal([]byte(command), &payload); err != nil {
					return fmt.Errorf("invalid job JSON: %w", err)
				}
				command = payload.Command
				if payload.MaxRetries != nil {
					retries = *payload.MaxRetries
				}
			}
			if cmd.Flags().Changed("retries") {
				retries, _ = cmd.Flags().GetInt("retries")
			}

			job, err := q.Enqueue(command, retries)
			if err != nil {
				return err
			}
			fmt.Printf("Job enqueued: %s\n", job.ID)
			return nil
		},
	}
	cmd.Flags().Int("retries", -1, "Max retries for this job (default: configured max_retries)")
	return cmd
}
