package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srujanreddy27/queuectl/internal/config"
)

// ConfigCmd reads and writes the per-data-dir configuration. Sets are
// persisted immediately.
func ConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Show one configuration value, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				value, err := cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Println(value)
				return nil
			}
			for _, key := range config.Keys() {
				value, _ := cfg.Get(key)
				fmt.Printf("%s = %s\n", key, value)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	}

	configCmd.AddCommand(getCmd)
	configCmd.AddCommand(setCmd)
	return configCmd
}
