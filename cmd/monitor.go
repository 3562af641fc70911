package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/flanksource/relmon/pkg/coordinator"
)

var monitorOutput string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check upstream repositories for new releases",
	Long: `monitor queries the upstream API for the latest release of every
configured repository, compares it with the version database, and writes the
monitor output document for a later download run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newStore(ctx)
		if err != nil {
			return err
		}

		coord := coordinator.New(cfg, store, coordinator.WithClient(newClient()))
		out, err := coord.Discover(ctx)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize monitor output: %w", err)
		}
		if err := os.WriteFile(monitorOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", monitorOutput, err)
		}

		logger.Infof("checked %d repositories, %d new release(s), wrote %s",
			out.TotalRepositoriesChecked, out.NewReleasesFound, monitorOutput)
		return nil
	},
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorOutput, "output", "o", "monitor-output.json", "Path for the monitor output document")
	rootCmd.AddCommand(monitorCmd)
}
