package db

import (
	"context"
	"database/sql"
	"errors"
)

const commentColumns = `id, post_result_id, platform_comment_id, author_name, content, replied, reply_content, created_at`

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	if err := row.Scan(
		&c.ID,
		&c.PostResultID,
		&c.PlatformCommentID,
		&c.AuthorName,
		&c.Content,
		&c.Replied,
		&c.ReplyContent,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCommentParams holds a comment pulled from a platform.
type CreateCommentParams struct {
	PostResultID      int64
	PlatformCommentID string
	AuthorName        string
	Content           string
}

// CreateComment inserts a comment unless one with the same platform id is
// already stored. It reports whether a row was inserted.
func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) (bool, error) {
	_, err := q.GetCommentByPlatformID(ctx, arg.PlatformCommentID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	_, err = q.exec(ctx, `
		INSERT INTO comments (post_result_id, platform_comment_id, author_name, content, replied, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.PostResultID, arg.PlatformCommentID, arg.AuthorName, arg.Content, false, now(),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetComment returns sql.ErrNoRows when the comment does not exist.
func (q *Queries) GetComment(ctx context.Context, id int64) (*Comment, error) {
	return scanComment(q.queryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id))
}

// GetCommentByPlatformID looks a comment up by the platform's own id.
func (q *Queries) GetCommentByPlatformID(ctx context.Context, platformCommentID string) (*Comment, error) {
	return scanComment(q.queryRow(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE platform_comment_id = ?`,
		platformCommentID,
	))
}

// ListComments returns comments newest first, optionally only unreplied ones.
func (q *Queries) ListComments(ctx context.Context, unrepliedOnly bool, limit int64) ([]*Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments`
	args := []interface{}{}
	if unrepliedOnly {
		query += ` WHERE replied = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// MarkCommentReplied records the reply sent for a comment.
func (q *Queries) MarkCommentReplied(ctx context.Context, id int64, reply string) error {
	_, err := q.exec(ctx,
		`UPDATE comments SET replied = ?, reply_content = ? WHERE id = ?`,
		true, reply, id,
	)
	return err
}
