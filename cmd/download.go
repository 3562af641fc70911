package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/flanksource/relmon/pkg/config"
	"github.com/flanksource/relmon/pkg/coordinator"
	"github.com/flanksource/relmon/pkg/download"
	"github.com/flanksource/relmon/pkg/types"
	"github.com/flanksource/relmon/pkg/upload"
)

var (
	fromFile   string
	reportFile string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download new release artifacts and update the version database",
	Long: `download runs the full pipeline: it obtains release descriptors (live, or
from a prior monitor run via --from), applies the per-repository download
policy, downloads and verifies the selected artifacts, and commits each
repository's version record once its plan succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.Download.Enabled {
			return fmt.Errorf("download.enabled is false: %w", config.ErrInvalid)
		}

		store, err := newStore(ctx)
		if err != nil {
			return err
		}

		opts := []coordinator.Option{
			coordinator.WithClient(newClient()),
			coordinator.WithDownloader(download.New(
				download.WithToken(os.Getenv("GITHUB_TOKEN")),
				download.WithTimeout(time.Duration(cfg.Download.Timeout*float64(time.Second))),
				download.WithVerification(cfg.Download.Verify()),
			)),
		}
		if cfg.Download.Upload.Enabled {
			uploader, err := upload.New(store.Backend(), cfg.Download.Upload)
			if err != nil {
				return err
			}
			opts = append(opts, coordinator.WithUploader(uploader))
		}
		coord := coordinator.New(cfg, store, opts...)

		var releases []types.Release
		if fromFile != "" {
			releases, err = readMonitorOutput(fromFile)
			if err != nil {
				return err
			}
		} else {
			out, err := coord.Discover(ctx)
			if err != nil {
				return err
			}
			releases = out.Releases
		}

		report, err := coord.Run(ctx, releases)
		if err != nil {
			return err
		}

		fmt.Println(report.Pretty().ANSI())

		if reportFile != "" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize run report: %w", err)
			}
			if err := os.WriteFile(reportFile, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", reportFile, err)
			}
			logger.V(1).Infof("wrote run report to %s", reportFile)
		}

		if failed := report.Count(types.StatusFailed); failed > 0 {
			return fmt.Errorf("%d repositories failed", failed)
		}
		return nil
	},
}

// readMonitorOutput loads release descriptors from a prior monitor run
func readMonitorOutput(path string) ([]types.Release, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitor output %s: %w", path, err)
	}
	var out types.MonitorOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse monitor output %s: %w", path, err)
	}
	return out.Releases, nil
}

func init() {
	downloadCmd.Flags().StringVar(&fromFile, "from", "", "Use releases from a monitor output document instead of live discovery")
	downloadCmd.Flags().StringVar(&reportFile, "report", "", "Write the run report as JSON to this path")
	rootCmd.AddCommand(downloadCmd)
}
