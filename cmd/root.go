package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/flanksource/relmon/pkg/config"
	"github.com/flanksource/relmon/pkg/github"
	"github.com/flanksource/relmon/pkg/storage"
	"github.com/flanksource/relmon/pkg/types"
)

var (
	configFile string
	cfg        *types.Config
)

var rootCmd = &cobra.Command{
	Use:   "relmon",
	Short: "A release-tracking daemon for upstream repositories",
	Long: `relmon monitors upstream repositories for new tagged releases, downloads
and verifies their artifacts, and records progress in a durable version
database (local file, S3, or an artifact repository).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply clicky flags after command line parsing
		clicky.Flags.UseFlags()

		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		logger.V(2).Infof("loaded %d repositories from %s", len(cfg.Repositories), configFile)
		return nil
	},
}

// Exit codes for process invocations
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitStorage    = 3
	ExitCredential = 4
	ExitCancelled  = 5
)

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(ctx, err)
	}
	return ExitOK
}

func exitCode(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return ExitCancelled
	case config.IsInvalid(err):
		return ExitConfig
	case storage.IsUnavailable(err) || storage.IsCorrupt(err):
		return ExitStorage
	case github.IsCredentialError(err):
		return ExitCredential
	}
	return ExitFailure
}

// newStore builds the version database over the backend selected by
// configuration and environment precedence.
func newStore(ctx context.Context) (*storage.Store, error) {
	backend, err := storage.Select(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	logger.V(1).Infof("using %s version database", backend.Name())
	return storage.NewStore(backend, cfg.Download.KeepVersions), nil
}

// newClient builds the upstream API client from global settings
func newClient() *github.Client {
	return github.NewClient(
		github.WithRateLimitDelay(cfg.Settings.RateLimitDelay),
		github.WithRequestTimeout(time.Duration(cfg.Settings.RequestTimeout*float64(time.Second))),
		github.WithMaxReleases(cfg.Settings.MaxReleasesPerRepo),
		github.WithPrereleases(cfg.Settings.IncludePrereleases),
	)
}

func init() {
	clicky.BindAllFlags(rootCmd.PersistentFlags(), "tasks", "!format")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "Path to relmon.yaml config file")
}
