package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/app"
	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/post"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Display post counts by status, result counts and connected accounts.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	byStatus, err := store.CountPostsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}

	results, err := store.GetResultStats(ctx)
	if err != nil {
		return fmt.Errorf("count results: %w", err)
	}

	accounts, err := store.ListAccounts(ctx, false)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	active := 0
	for _, a := range accounts {
		if a.IsActive {
			active++
		}
	}

	// Print stats
	fmt.Println("=== crosspost Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s\n", store.Dialect())
	fmt.Println()

	fmt.Println("Posts:")
	var total int64
	for _, s := range []post.Status{post.StatusDraft, post.StatusScheduled, post.StatusPublishing, post.StatusPublished, post.StatusFailed} {
		fmt.Printf("  %s: %d\n", s, byStatus[s])
		total += byStatus[s]
	}
	fmt.Printf("  Total: %d\n", total)
	fmt.Println()

	fmt.Println("Results:")
	fmt.Printf("  Succeeded: %d\n", results.Succeeded)
	fmt.Printf("  Failed: %d\n", results.Failed)
	fmt.Println()

	fmt.Println("Accounts:")
	fmt.Printf("  Active: %d\n", active)
	fmt.Printf("  Inactive: %d\n", len(accounts)-active)
	fmt.Println()

	if byStatus[post.StatusPublishing] > 0 {
		fmt.Println("Posts in publishing may have been interrupted; use republish or check the logs.")
	}

	return nil
}
