package cmd

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/flanksource/relmon/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show version database contents and upstream API status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		db, err := store.Load(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Version database: %s (schema %s, updated %s)\n",
			db.Metadata.Storage, db.Metadata.Version, db.Metadata.LastUpdated.Format("2006-01-02 15:04:05"))

		keys := lo.Keys(db.Repositories)
		sort.Strings(keys)
		for _, key := range keys {
			record := db.Repositories[key]
			fmt.Printf("  %-40s %s (%d downloads in history)\n", key, record.CurrentVersion, len(record.DownloadHistory))
		}
		if len(keys) == 0 {
			fmt.Println("  (empty)")
		}

		client := newClient()
		fmt.Printf("\nUpstream credential: %s\n", client.TokenSource())
		if rate, err := client.RateLimitStatus(ctx); err == nil {
			line := fmt.Sprintf("Rate limit: %d/%d remaining", rate.Remaining, rate.Total)
			if rate.ResetTime != nil {
				line += fmt.Sprintf(", resets %s", rate.ResetTime.Format("15:04:05"))
			}
			fmt.Println(line)
		} else {
			fmt.Printf("Rate limit: unavailable (%v)\n", err)
		}

		configured := lo.Map(cfg.Repositories, func(r types.Repository, _ int) string { return r.Key() })
		missing := lo.Without(configured, keys...)
		if len(missing) > 0 {
			fmt.Printf("\n%d configured repositories with no record yet: %v\n", len(missing), missing)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
