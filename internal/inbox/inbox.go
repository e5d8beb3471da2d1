// Package inbox collects comments left on published posts and sends replies
// through the platform adapters.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/platform"
)

// DefaultLimit bounds how many success rows a fetch walks and how many
// comments a listing returns.
const DefaultLimit = 100

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrAlreadyReplied  = errors.New("comment already replied")
	ErrEmptyReply      = errors.New("reply text is required")

	// ErrAccountUnavailable is returned when the account that published the
	// post is gone, inactive, or has no adapter.
	ErrAccountUnavailable = errors.New("account unavailable")
)

// FetchReport summarises a fetch run.
type FetchReport struct {
	Results int
	New     int
	Failed  int
}

// Inbox reads and answers comments.
type Inbox struct {
	store    *db.Store
	registry account.Registry
	adapters platform.Set
}

// New creates a new inbox.
func New(store *db.Store, registry account.Registry, adapters platform.Set) *Inbox {
	return &Inbox{
		store:    store,
		registry: registry,
		adapters: adapters,
	}
}

// Fetch pulls comments for the newest success rows and stores the ones not
// seen before.
func (i *Inbox) Fetch(ctx context.Context, limit int64) (FetchReport, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results, err := i.store.ListSuccessfulResults(ctx, limit)
	if err != nil {
		return FetchReport{}, fmt.Errorf("list successful results: %w", err)
	}

	var report FetchReport
	for _, r := range results {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		acct, adapter, err := i.resolve(ctx, r.AccountID)
		if errors.Is(err, ErrAccountUnavailable) {
			continue
		}
		report.Results++
		if err != nil {
			report.Failed++
			slog.Warn("failed to resolve account", "account_id", r.AccountID, "error", err)
			continue
		}

		comments, err := adapter.FetchComments(ctx, acct.Target(), r.ExternalPostID.String)
		if err != nil {
			report.Failed++
			slog.Warn("failed to fetch comments",
				"result_id", r.ID,
				"platform", r.Platform,
				"error", err,
			)
			continue
		}

		for _, c := range comments {
			inserted, err := i.store.CreateComment(ctx, db.CreateCommentParams{
				PostResultID:      r.ID,
				PlatformCommentID: c.ID,
				AuthorName:        c.AuthorName,
				Content:           c.Text,
			})
			if err != nil {
				return report, fmt.Errorf("store comment %s: %w", c.ID, err)
			}
			if inserted {
				report.New++
			}
		}
	}

	slog.Info("comment fetch complete",
		"results", report.Results,
		"new", report.New,
		"failed", report.Failed,
	)
	return report, nil
}

// List returns stored comments, newest first.
func (i *Inbox) List(ctx context.Context, unrepliedOnly bool, limit int64) ([]*db.Comment, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	comments, err := i.store.ListComments(ctx, unrepliedOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Reply answers a stored comment on its platform and records the reply.
// It returns the platform id of the reply.
func (i *Inbox) Reply(ctx context.Context, commentID int64, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyReply
	}

	comment, err := i.store.GetComment(ctx, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCommentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get comment: %w", err)
	}
	if comment.Replied {
		return "", ErrAlreadyReplied
	}

	result, err := i.store.GetPostResult(ctx, comment.PostResultID)
	if err != nil {
		return "", fmt.Errorf("get result %d: %w", comment.PostResultID, err)
	}

	acct, adapter, err := i.resolve(ctx, result.AccountID)
	if err != nil {
		return "", err
	}

	replyID, err := adapter.ReplyToComment(ctx, acct.Target(), platform.CommentRef{
		ID:     comment.PlatformCommentID,
		PostID: result.ExternalPostID.String,
	}, text)
	if err != nil {
		return "", fmt.Errorf("reply on %s: %w", acct.Platform, err)
	}

	if err := i.store.MarkCommentReplied(ctx, comment.ID, text); err != nil {
		return "", fmt.Errorf("mark comment replied: %w", err)
	}

	slog.Info("replied to comment",
		"comment_id", comment.ID,
		"platform", acct.Platform,
		"reply_id", replyID,
	)
	return replyID, nil
}

func (i *Inbox) resolve(ctx context.Context, accountID int64) (*account.Account, platform.Adapter, error) {
	acct, err := i.registry.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if acct == nil || !acct.Active {
		return nil, nil, fmt.Errorf("%w: account %d", ErrAccountUnavailable, accountID)
	}
	adapter, ok := i.adapters.Get(acct.Platform)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no adapter for %s", ErrAccountUnavailable, acct.Platform)
	}
	return acct, adapter, nil
}
