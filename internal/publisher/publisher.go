// Package publisher fans a post out to its target accounts and records one
// result per account.
package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/platform"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/telemetry"
)

var (
	// ErrNotFound is returned when the post does not exist.
	ErrNotFound = errors.New("post not found")

	// ErrNotClaimable is returned by PublishNow when the post is not a draft
	// or scheduled.
	ErrNotClaimable = errors.New("post is not a draft or scheduled")

	// ErrNotRepublishable is returned by Republish unless the post is
	// published or failed.
	ErrNotRepublishable = errors.New("post is not published or failed")

	// ErrNotPublishing is returned by Publish when the post was not moved
	// into publishing first.
	ErrNotPublishing = errors.New("post is not publishing")
)

// Config holds publisher settings.
type Config struct {
	// BaseURL is the public address uploads are served from, used to build
	// image URLs for platforms that fetch images themselves.
	BaseURL string

	// UploadDir resolves relative image paths.
	UploadDir string
}

// Outcome summarises a publish attempt for user-visible reporting.
type Outcome struct {
	PostID    int64
	AttemptID string
	Status    post.Status
	// Succeeded counts every success row the post holds, including ones
	// kept from earlier attempts.
	Succeeded int
	Failed    int
	Skipped   int
}

// Publisher publishes posts to their target accounts.
type Publisher struct {
	store    *db.Store
	registry account.Registry
	adapters platform.Set
	cfg      Config
	now      func() time.Time

	resultCounter metric.Int64Counter
	postCounter   metric.Int64Counter
}

// New creates a new publisher.
func New(store *db.Store, registry account.Registry, adapters platform.Set, cfg Config) *Publisher {
	meter := telemetry.Meter()

	resultCounter, err := meter.Int64Counter("crosspost.publish.results",
		metric.WithDescription("Per-account publish results"))
	if err != nil {
		slog.Warn("failed to create result counter", "error", err)
	}
	postCounter, err := meter.Int64Counter("crosspost.publish.posts",
		metric.WithDescription("Finished publish attempts by post status"))
	if err != nil {
		slog.Warn("failed to create post counter", "error", err)
	}

	return &Publisher{
		store:         store,
		registry:      registry,
		adapters:      adapters,
		cfg:           cfg,
		now:           time.Now,
		resultCounter: resultCounter,
		postCounter:   postCounter,
	}
}

// Publish attempts every target of a publishing post that has no result yet
// and moves the post to published or failed. Per-target failures are
// recorded as failed results; only persistence errors are returned.
//
// Once a post is publishing the attempt ignores cancellation of ctx: every
// adapter call is bounded by its own timeout, and the results are always
// persisted so a post is never left publishing by a dropped caller.
func (p *Publisher) Publish(ctx context.Context, postID int64) error {
	_, err := p.publish(ctx, postID)
	return err
}

// PublishNow claims a draft or scheduled post and publishes it.
func (p *Publisher) PublishNow(ctx context.Context, postID int64) (Outcome, error) {
	ok, err := p.store.ClaimPost(ctx, postID, post.StatusDraft, post.StatusScheduled)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim post %d: %w", postID, err)
	}
	if !ok {
		return Outcome{}, p.explainClaim(ctx, postID, ErrNotClaimable)
	}

	return p.publish(ctx, postID)
}

// Republish drops the failed results of a published or failed post, moves
// it back to publishing and retries only the targets without a result.
func (p *Publisher) Republish(ctx context.Context, postID int64) (Outcome, error) {
	err := p.store.ExecTx(ctx, func(q *db.Queries) error {
		row, err := q.GetPost(ctx, postID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get post: %w", err)
		}

		status := post.Status(row.Status)
		if !status.Republishable() {
			return fmt.Errorf("%w: post %d is %s", ErrNotRepublishable, postID, status)
		}

		deleted, err := q.DeleteFailedPostResults(ctx, postID)
		if err != nil {
			return fmt.Errorf("delete failed results: %w", err)
		}

		ok, err := q.ReenterPost(ctx, postID)
		if err != nil {
			return fmt.Errorf("reenter post: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: post %d changed status", ErrNotRepublishable, postID)
		}

		slog.Info("republishing post", "post_id", postID, "dropped_results", deleted)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return p.publish(ctx, postID)
}

// ForceFail moves a post stuck in publishing to failed. It is a no-op for
// posts in any other status.
func (p *Publisher) ForceFail(ctx context.Context, postID int64) error {
	ctx = context.WithoutCancel(ctx)
	ok, err := p.store.ForceFailPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("force fail post %d: %w", postID, err)
	}
	if ok {
		slog.Warn("post forced to failed", "post_id", postID)
		p.countPost(ctx, post.StatusFailed)
	}
	return nil
}

func (p *Publisher) explainClaim(ctx context.Context, postID int64, sentinel error) error {
	row, err := p.store.GetPost(ctx, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	}
	return fmt.Errorf("%w: post %d is %s", sentinel, postID, row.Status)
}

func (p *Publisher) publish(ctx context.Context, postID int64) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	row, err := p.store.GetPost(ctx, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return Outcome{}, ErrNotFound
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("get post: %w", err)
	}
	if post.Status(row.Status) != post.StatusPublishing {
		return Outcome{}, fmt.Errorf("%w: post %d is %s", ErrNotPublishing, postID, row.Status)
	}

	targets, err := p.store.ListPostTargets(ctx, postID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list targets: %w", err)
	}

	current, err := p.store.ListPostResults(ctx, postID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list results: %w", err)
	}
	done := make(map[int64]bool, len(current))
	for _, r := range current {
		done[r.AccountID] = true
	}

	outcome := Outcome{PostID: postID, AttemptID: uuid.NewString()}
	image := p.image(row)

	log := slog.With("post_id", postID, "attempt_id", outcome.AttemptID)
	log.Info("publishing post", "targets", len(targets), "kept", len(current))

	var pending []db.CreatePostResultParams
	for _, accountID := range targets {
		if done[accountID] {
			continue
		}

		result, ok := p.attempt(ctx, row, accountID, outcome.AttemptID, image)
		if !ok {
			log.Debug("skipping missing or inactive account", "account_id", accountID)
			outcome.Skipped++
			continue
		}
		if result.Status == db.ResultFailed {
			outcome.Failed++
		}
		pending = append(pending, result)
	}

	err = p.store.ExecTx(ctx, func(q *db.Queries) error {
		for _, r := range pending {
			if _, err := q.CreatePostResult(ctx, r); err != nil {
				return fmt.Errorf("insert result for account %d: %w", r.AccountID, err)
			}
		}

		successes, err := q.CountSuccessfulResults(ctx, postID)
		if err != nil {
			return fmt.Errorf("count results: %w", err)
		}
		outcome.Succeeded = int(successes)
		outcome.Status = post.Aggregate(int(successes))

		ok, err := q.FinishPost(ctx, postID, outcome.Status, p.now())
		if err != nil {
			return fmt.Errorf("finish post: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: post %d left publishing during the attempt", ErrNotPublishing, postID)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	p.countPost(ctx, outcome.Status)
	log.Info("post publish finished",
		"status", outcome.Status,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"skipped", outcome.Skipped,
	)

	return outcome, nil
}

// attempt publishes to one account. It reports false when the account is
// missing or inactive and no result should be recorded.
func (p *Publisher) attempt(ctx context.Context, row *db.Post, accountID int64, attemptID string, image *platform.Image) (result db.CreatePostResultParams, recorded bool) {
	result = db.CreatePostResultParams{
		PostID:    row.ID,
		AccountID: accountID,
		AttemptID: attemptID,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while publishing", "post_id", row.ID, "account_id", accountID, "panic", r)
			result = failed(result, fmt.Sprintf("internal error: %v", r))
			recorded = true
			p.countResult(ctx, result)
		}
	}()

	acct, err := p.registry.Get(ctx, accountID)
	if err != nil {
		// The platform is unknown without the account, so the row keeps an
		// empty platform tag.
		result = failed(result, fmt.Sprintf("account lookup failed: %v", err))
		p.countResult(ctx, result)
		return result, true
	}
	if acct == nil || !acct.Active {
		return result, false
	}
	result.Platform = string(acct.Platform)

	ctx, span := telemetry.StartSpan(ctx, "publisher.publish_target")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("post.id", row.ID),
		attribute.Int64("account.id", accountID),
		attribute.String("platform", result.Platform),
	)

	result = p.send(ctx, acct, row.Content, image, result)
	if result.Status == db.ResultFailed {
		span.SetStatus(codes.Error, result.ErrorMessage)
		slog.Warn("publish to account failed",
			"post_id", row.ID,
			"account_id", accountID,
			"platform", result.Platform,
			"error", result.ErrorMessage,
		)
	}
	p.countResult(ctx, result)
	return result, true
}

func (p *Publisher) send(ctx context.Context, acct *account.Account, text string, image *platform.Image, result db.CreatePostResultParams) db.CreatePostResultParams {
	adapter, ok := p.adapters.Get(acct.Platform)
	if !ok {
		return failed(result, fmt.Sprintf("unsupported platform: %s", acct.Platform))
	}

	if err := platform.CheckCaption(acct.Platform, text); err != nil {
		return failed(result, err.Error())
	}

	var (
		externalID string
		err        error
	)
	if image != nil {
		externalID, err = adapter.PublishImage(ctx, acct.Target(), text, *image)
	} else {
		externalID, err = adapter.PublishText(ctx, acct.Target(), text)
	}
	if err != nil {
		return failed(result, err.Error())
	}
	if externalID == "" {
		return failed(result, platform.ErrEmptyID.Error())
	}

	now := p.now()
	result.Status = db.ResultSuccess
	result.ExternalPostID = externalID
	result.PublishedAt = &now
	return result
}

func failed(result db.CreatePostResultParams, message string) db.CreatePostResultParams {
	result.Status = db.ResultFailed
	result.ErrorMessage = message
	result.ExternalPostID = ""
	result.PublishedAt = nil
	return result
}

// image resolves the post's image into a local path and a public URL.
func (p *Publisher) image(row *db.Post) *platform.Image {
	if !row.ImagePath.Valid || row.ImagePath.String == "" {
		return nil
	}

	path := row.ImagePath.String
	if !filepath.IsAbs(path) && p.cfg.UploadDir != "" {
		path = filepath.Join(p.cfg.UploadDir, path)
	}

	return &platform.Image{
		Path: path,
		URL:  strings.TrimRight(p.cfg.BaseURL, "/") + "/uploads/" + filepath.Base(path),
	}
}

func (p *Publisher) countResult(ctx context.Context, result db.CreatePostResultParams) {
	if p.resultCounter == nil {
		return
	}
	p.resultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", result.Platform),
		attribute.String("outcome", result.Status),
	))
}

func (p *Publisher) countPost(ctx context.Context, status post.Status) {
	if p.postCounter == nil {
		return
	}
	p.postCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
