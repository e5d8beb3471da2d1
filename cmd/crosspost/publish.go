package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish <post-id>",
	Short: "Publish a draft or scheduled post now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish(args[0], (*publisher.Publisher).PublishNow)
	},
}

var republishCmd = &cobra.Command{
	Use:   "republish <post-id>",
	Short: "Retry the failed targets of a published or failed post",
	Long: `Drop the failed results of a post, move it back to publishing and
retry only the targets that do not have a successful result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish(args[0], (*publisher.Publisher).Republish)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(republishCmd)
}

func runPublish(arg string, fn func(*publisher.Publisher, context.Context, int64) (publisher.Outcome, error)) error {
	ctx := context.Background()

	postID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q", arg)
	}

	a, err := loadApp(ctx, (*config.Config).ValidateForPublishing)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := checkReady(ctx, a.Store, postID); err != nil {
		return err
	}

	outcome, err := fn(a.Publisher, ctx, postID)
	if err != nil {
		return err
	}

	results, err := a.Store.ListPostResults(ctx, postID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	fmt.Printf("Post %d: %s (attempt %s)\n", outcome.PostID, outcome.Status, outcome.AttemptID)
	fmt.Printf("  Succeeded: %d  Failed: %d  Skipped: %d\n", outcome.Succeeded, outcome.Failed, outcome.Skipped)
	fmt.Println()
	printResults(results)

	return nil
}

// checkReady applies the compose checks to a draft or scheduled post before
// it is claimed. Posts in other statuses are left for the publisher to judge.
func checkReady(ctx context.Context, store *db.Store, postID int64) error {
	row, err := store.GetPost(ctx, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return publisher.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	}
	if !post.Status(row.Status).Claimable() {
		return nil
	}

	targets, err := store.ListPostTargets(ctx, postID)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	if err := post.CheckReady(row.Content, len(targets)); err != nil {
		return fmt.Errorf("post %d: %w", postID, err)
	}
	return nil
}

func printResults(results []*db.PostResult) {
	for _, r := range results {
		if r.Status == db.ResultSuccess {
			fmt.Printf("  [ok]   account %d (%s): %s\n", r.AccountID, r.Platform, r.ExternalPostID.String)
			continue
		}
		fmt.Printf("  [fail] account %d (%s): %s\n", r.AccountID, r.Platform, r.ErrorMessage.String)
	}
}
