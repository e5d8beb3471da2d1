package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdulachik/crosspost/internal/post"
)

const postColumns = `id, created_by, content, image_path, status, scheduled_at, published_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	if err := row.Scan(
		&p.ID,
		&p.CreatedBy,
		&p.Content,
		&p.ImagePath,
		&p.Status,
		&p.ScheduledAt,
		&p.PublishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]*Post, error) {
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePostParams holds the fields of a new post row.
type CreatePostParams struct {
	CreatedBy   int64
	Content     string
	ImagePath   string
	Status      post.Status
	ScheduledAt *time.Time
}

// CreatePost inserts a post row. Targets are added with AddPostTarget.
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (*Post, error) {
	ts := now()
	row := q.queryRow(ctx, `
		INSERT INTO posts (created_by, content, image_path, status, scheduled_at, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
		RETURNING `+postColumns,
		arg.CreatedBy,
		arg.Content,
		nullString(arg.ImagePath),
		string(arg.Status),
		nullTime(arg.ScheduledAt),
		ts,
		ts,
	)
	return scanPost(row)
}

// AddPostTarget appends an account to the post's ordered target set.
func (q *Queries) AddPostTarget(ctx context.Context, postID, accountID int64, position int) error {
	_, err := q.exec(ctx,
		`INSERT INTO post_targets (post_id, account_id, position) VALUES (?, ?, ?)`,
		postID, accountID, position,
	)
	return err
}

// DeletePostTargets removes every target of a post.
func (q *Queries) DeletePostTargets(ctx context.Context, postID int64) error {
	_, err := q.exec(ctx, `DELETE FROM post_targets WHERE post_id = ?`, postID)
	return err
}

// ListPostTargets returns the post's target account ids in order.
func (q *Queries) ListPostTargets(ctx context.Context, postID int64) ([]int64, error) {
	rows, err := q.query(ctx,
		`SELECT account_id FROM post_targets WHERE post_id = ? ORDER BY position`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPost returns sql.ErrNoRows when the post does not exist.
func (q *Queries) GetPost(ctx context.Context, id int64) (*Post, error) {
	return scanPost(q.queryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
}

// ListPosts returns the newest posts first.
func (q *Queries) ListPosts(ctx context.Context, limit int64) ([]*Post, error) {
	rows, err := q.query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ListPostsByStatus returns posts in the given status, oldest first.
func (q *Queries) ListPostsByStatus(ctx context.Context, status post.Status) ([]*Post, error) {
	rows, err := q.query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE status = ? ORDER BY updated_at, id`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ListDuePosts returns scheduled posts whose time is at or before asOf.
func (q *Queries) ListDuePosts(ctx context.Context, asOf time.Time) ([]*Post, error) {
	rows, err := q.query(ctx,
		`SELECT `+postColumns+` FROM posts
		WHERE status = 'scheduled' AND scheduled_at <= ?
		ORDER BY scheduled_at, id`,
		asOf.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

// ClaimPost moves a post into publishing if it is currently in one of from.
// It reports false when another caller got there first.
func (q *Queries) ClaimPost(ctx context.Context, id int64, from ...post.Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("claim post %d: no source statuses", id)
	}

	args := []interface{}{now(), id}
	for _, s := range from {
		if err := post.Transition(s, post.StatusPublishing); err != nil {
			return false, err
		}
		args = append(args, string(s))
	}

	res, err := q.exec(ctx, `
		UPDATE posts
		SET status = 'publishing', scheduled_at = NULL, published_at = NULL, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SchedulePost sets a draft or scheduled post to run at the given time.
func (q *Queries) SchedulePost(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := q.exec(ctx, `
		UPDATE posts
		SET status = 'scheduled', scheduled_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('draft', 'scheduled')`,
		at.UTC(), now(), id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// UpdatePostContentParams holds an edit of a post that has not been published.
type UpdatePostContentParams struct {
	ID        int64
	Content   string
	ImagePath string
}

// UpdatePostContent edits content while the post is still editable.
func (q *Queries) UpdatePostContent(ctx context.Context, arg UpdatePostContentParams) (bool, error) {
	res, err := q.exec(ctx, `
		UPDATE posts
		SET content = ?, image_path = ?, updated_at = ?
		WHERE id = ? AND status IN ('draft', 'scheduled')`,
		arg.Content, nullString(arg.ImagePath), now(), arg.ID,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// FinishPost records the terminal status of a publishing post.
func (q *Queries) FinishPost(ctx context.Context, id int64, status post.Status, at time.Time) (bool, error) {
	if err := post.Transition(post.StatusPublishing, status); err != nil {
		return false, err
	}

	var publishedAt sql.NullTime
	if status == post.StatusPublished {
		publishedAt = nullTime(&at)
	}

	res, err := q.exec(ctx, `
		UPDATE posts
		SET status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = 'publishing'`,
		string(status), publishedAt, now(), id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ReenterPost moves a published or failed post back into publishing.
func (q *Queries) ReenterPost(ctx context.Context, id int64) (bool, error) {
	res, err := q.exec(ctx, `
		UPDATE posts
		SET status = 'publishing', published_at = NULL, updated_at = ?
		WHERE id = ? AND status IN ('published', 'failed')`,
		now(), id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ForceFailPost marks a post stuck in publishing as failed.
func (q *Queries) ForceFailPost(ctx context.Context, id int64) (bool, error) {
	res, err := q.exec(ctx, `
		UPDATE posts
		SET status = 'failed', scheduled_at = NULL, published_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'publishing'`,
		now(), id,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CountPostsByStatus returns the number of posts per status.
func (q *Queries) CountPostsByStatus(ctx context.Context) (map[post.Status]int64, error) {
	rows, err := q.query(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[post.Status]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[post.Status(status)] = count
	}
	return counts, rows.Err()
}
