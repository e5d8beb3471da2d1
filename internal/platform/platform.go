// Package platform talks to the social networks a post can be published to.
package platform

import (
	"context"
	"time"
)

// Platform identifies a social network.
type Platform string

const (
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
	LinkedIn  Platform = "linkedin"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case Facebook, Instagram, LinkedIn:
		return true
	}
	return false
}

// Target is where and as whom a call is made.
type Target struct {
	// Destination is the page id, IG user id or LinkedIn author URN.
	Destination string
	AccessToken string
}

// Image is the picture attached to a post. Path is the local file used for
// binary uploads, URL the public address used by URL-based uploads.
type Image struct {
	Path string
	URL  string
}

// Engagement holds the counters of a published post.
type Engagement struct {
	Likes    int64
	Comments int64
	Shares   int64
}

// Comment is a comment read from a platform.
type Comment struct {
	ID         string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// CommentRef identifies a comment to reply to. PostID is the external id of
// the post the comment belongs to.
type CommentRef struct {
	ID     string
	PostID string
}

// Adapter is the interface for publishing to and reading from a platform.
type Adapter interface {
	// Platform returns the platform the adapter talks to.
	Platform() Platform

	// PublishText publishes a text-only post and returns its external id.
	PublishText(ctx context.Context, target Target, text string) (string, error)

	// PublishImage publishes a post with an image and returns its external id.
	PublishImage(ctx context.Context, target Target, text string, image Image) (string, error)

	FetchEngagement(ctx context.Context, target Target, externalPostID string) (Engagement, error)
	FetchComments(ctx context.Context, target Target, externalPostID string) ([]Comment, error)
	ReplyToComment(ctx context.Context, target Target, comment CommentRef, text string) (string, error)
}

// Timeouts bounds each kind of platform call.
type Timeouts struct {
	Publish time.Duration
	Image   time.Duration
	Read    time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Publish: 30 * time.Second,
		Image:   60 * time.Second,
		Read:    15 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Publish <= 0 {
		t.Publish = d.Publish
	}
	if t.Image <= 0 {
		t.Image = d.Image
	}
	if t.Read <= 0 {
		t.Read = d.Read
	}
	return t
}

// Set selects adapters by platform tag.
type Set map[Platform]Adapter

// NewSet indexes adapters by their platform.
func NewSet(adapters ...Adapter) Set {
	s := make(Set, len(adapters))
	for _, a := range adapters {
		s[a.Platform()] = a
	}
	return s
}

// Get returns the adapter for p.
func (s Set) Get(p Platform) (Adapter, bool) {
	a, ok := s[p]
	return a, ok
}
