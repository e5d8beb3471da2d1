package db

import (
	"context"
	"database/sql"
	"time"
)

const resultColumns = `id, post_id, account_id, platform, external_post_id, status, error_message, published_at,
	likes_count, comments_count, shares_count, attempt_id, created_at`

func scanResult(row rowScanner) (*PostResult, error) {
	var r PostResult
	if err := row.Scan(
		&r.ID,
		&r.PostID,
		&r.AccountID,
		&r.Platform,
		&r.ExternalPostID,
		&r.Status,
		&r.ErrorMessage,
		&r.PublishedAt,
		&r.LikesCount,
		&r.CommentsCount,
		&r.SharesCount,
		&r.AttemptID,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanResults(rows *sql.Rows) ([]*PostResult, error) {
	defer rows.Close()

	var results []*PostResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CreatePostResultParams holds the outcome of one target of one attempt.
// ExternalPostID and PublishedAt are set only for successes, ErrorMessage
// only for failures.
type CreatePostResultParams struct {
	PostID         int64
	AccountID      int64
	Platform       string
	Status         string
	ExternalPostID string
	ErrorMessage   string
	PublishedAt    *time.Time
	AttemptID      string
}

// CreatePostResult inserts a result row.
func (q *Queries) CreatePostResult(ctx context.Context, arg CreatePostResultParams) (*PostResult, error) {
	row := q.queryRow(ctx, `
		INSERT INTO post_results (post_id, account_id, platform, external_post_id, status, error_message, published_at, attempt_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+resultColumns,
		arg.PostID,
		arg.AccountID,
		arg.Platform,
		nullString(arg.ExternalPostID),
		arg.Status,
		nullString(arg.ErrorMessage),
		nullTime(arg.PublishedAt),
		arg.AttemptID,
		now(),
	)
	return scanResult(row)
}

// GetPostResult returns sql.ErrNoRows when the result does not exist.
func (q *Queries) GetPostResult(ctx context.Context, id int64) (*PostResult, error) {
	return scanResult(q.queryRow(ctx, `SELECT `+resultColumns+` FROM post_results WHERE id = ?`, id))
}

// ListPostResults returns every current result of a post.
func (q *Queries) ListPostResults(ctx context.Context, postID int64) ([]*PostResult, error) {
	rows, err := q.query(ctx,
		`SELECT `+resultColumns+` FROM post_results WHERE post_id = ? ORDER BY id`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// ListSuccessfulResults returns the newest success rows across all posts.
func (q *Queries) ListSuccessfulResults(ctx context.Context, limit int64) ([]*PostResult, error) {
	rows, err := q.query(ctx,
		`SELECT `+resultColumns+` FROM post_results WHERE status = 'success' ORDER BY published_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// DeleteFailedPostResults drops the failed rows of a post ahead of a republish.
func (q *Queries) DeleteFailedPostResults(ctx context.Context, postID int64) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM post_results WHERE post_id = ? AND status = 'failed'`, postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSuccessfulResults returns the number of success rows a post holds.
func (q *Queries) CountSuccessfulResults(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM post_results WHERE post_id = ? AND status = 'success'`,
		postID,
	).Scan(&count)
	return count, err
}

// UpdateResultEngagementParams holds fresh engagement counters.
type UpdateResultEngagementParams struct {
	ID       int64
	Likes    int64
	Comments int64
	Shares   int64
}

// UpdateResultEngagement overwrites the counters of a success row.
func (q *Queries) UpdateResultEngagement(ctx context.Context, arg UpdateResultEngagementParams) error {
	_, err := q.exec(ctx, `
		UPDATE post_results
		SET likes_count = ?, comments_count = ?, shares_count = ?
		WHERE id = ? AND status = 'success'`,
		arg.Likes, arg.Comments, arg.Shares, arg.ID,
	)
	return err
}

// ResultStats summarises result rows by outcome.
type ResultStats struct {
	Succeeded int64
	Failed    int64
}

// GetResultStats counts result rows across all posts.
func (q *Queries) GetResultStats(ctx context.Context) (ResultStats, error) {
	var stats ResultStats
	err := q.queryRow(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'success' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM post_results`,
	).Scan(&stats.Succeeded, &stats.Failed)
	return stats, err
}
