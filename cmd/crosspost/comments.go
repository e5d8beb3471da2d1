package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/inbox"
	"github.com/abdulachik/crosspost/internal/platform"
)

var (
	commentsLimit     int64
	commentsUnreplied bool
)

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Comments left on published posts",
}

var commentsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull new comments for recent successful results",
	RunE:  runCommentsFetch,
}

var commentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored comments",
	RunE:  runCommentsList,
}

var commentsReplyCmd = &cobra.Command{
	Use:   "reply <comment-id> <text>",
	Short: "Reply to a comment on its platform",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCommentsReply,
}

func init() {
	commentsFetchCmd.Flags().Int64Var(&commentsLimit, "limit", inbox.DefaultLimit, "Number of recent results to read comments for")
	commentsListCmd.Flags().Int64Var(&commentsLimit, "limit", inbox.DefaultLimit, "Number of comments to show")
	commentsListCmd.Flags().BoolVar(&commentsUnreplied, "unreplied", false, "Only show comments without a reply")

	commentsCmd.AddCommand(commentsFetchCmd, commentsListCmd, commentsReplyCmd)
	rootCmd.AddCommand(commentsCmd)
}

func runCommentsFetch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx, (*config.Config).ValidateForPublishing)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Inbox.Fetch(ctx, commentsLimit)
	if err != nil {
		return err
	}

	fmt.Printf("Results: %d  New comments: %d  Failed: %d\n", report.Results, report.New, report.Failed)
	return nil
}

func runCommentsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	comments, err := a.Inbox.List(ctx, commentsUnreplied, commentsLimit)
	if err != nil {
		return err
	}

	for _, c := range comments {
		mark := " "
		if c.Replied {
			mark = "✓"
		}
		content := strings.Join(strings.Fields(c.Content), " ")
		fmt.Printf("%s %4d  %s: %s\n", mark, c.ID, c.AuthorName, platform.Truncate(content, 80))
	}
	return nil
}

func runCommentsReply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment id %q", args[0])
	}

	a, err := loadApp(ctx, (*config.Config).ValidateForPublishing)
	if err != nil {
		return err
	}
	defer a.Close()

	replyID, err := a.Inbox.Reply(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	fmt.Printf("Replied to comment %d (reply %s)\n", id, replyID)
	return nil
}
