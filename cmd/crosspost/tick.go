package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/config"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Publish every due scheduled post once",
	Long: `Run a single scheduler pass: every scheduled post whose time has come
is claimed and published. Useful from cron when the daemon is not running.`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx, (*config.Config).ValidateForPublishing)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Scheduler.Tick(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Due: %d  Claimed: %d  Published: %d  Failed: %d\n",
		report.Due, report.Claimed, report.Published, report.Failed)
	return nil
}
