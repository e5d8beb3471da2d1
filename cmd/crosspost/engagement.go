package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/engagement"
)

var engagementLimit int64

var engagementCmd = &cobra.Command{
	Use:   "engagement",
	Short: "Engagement counters of published posts",
}

var engagementSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh likes, comments and shares of recent successful results",
	RunE:  runEngagementSync,
}

func init() {
	engagementSyncCmd.Flags().Int64Var(&engagementLimit, "limit", engagement.DefaultLimit, "Number of recent results to refresh")
	engagementCmd.AddCommand(engagementSyncCmd)
	rootCmd.AddCommand(engagementCmd)
}

func runEngagementSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx, (*config.Config).ValidateForPublishing)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Engagement.Sync(ctx, engagementLimit)
	if err != nil {
		return err
	}

	fmt.Printf("Checked: %d  Updated: %d  Skipped: %d  Failed: %d\n",
		report.Checked, report.Updated, report.Skipped, report.Failed)
	return nil
}
