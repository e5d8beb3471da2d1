package db

import (
	"database/sql"
	"time"
)

// Post is a row of the posts table.
type Post struct {
	ID          int64
	CreatedBy   int64
	Content     string
	ImagePath   sql.NullString
	Status      string
	ScheduledAt sql.NullTime
	PublishedAt sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostResult is the outcome of publishing a post to one account.
type PostResult struct {
	ID             int64
	PostID         int64
	AccountID      int64
	Platform       string
	ExternalPostID sql.NullString
	Status         string
	ErrorMessage   sql.NullString
	PublishedAt    sql.NullTime
	LikesCount     int64
	CommentsCount  int64
	SharesCount    int64
	AttemptID      string
	CreatedAt      time.Time
}

// Account is a connected social media account.
type Account struct {
	ID                int64
	Platform          string
	PlatformAccountID string
	Name              string
	AccessToken       string
	PageID            sql.NullString
	IgUserID          sql.NullString
	OrgUrn            sql.NullString
	IsActive          bool
	ConnectedAt       time.Time
}

// Comment is a comment left on a published post.
type Comment struct {
	ID                int64
	PostResultID      int64
	PlatformCommentID string
	AuthorName        string
	Content           string
	Replied           bool
	ReplyContent      sql.NullString
	CreatedAt         time.Time
}

// Result statuses stored in post_results.status.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)
