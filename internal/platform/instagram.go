package platform

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// InstagramAdapter publishes to Instagram Business accounts through the
// Graph API. Media is published in two phases: a container is created from
// a public image URL, then published.
type InstagramAdapter struct {
	graph         *graphClient
	timeouts      Timeouts
	containerWait time.Duration
}

// InstagramConfig holds configuration for the Instagram adapter.
type InstagramConfig struct {
	BaseURL  string
	Timeouts Timeouts
	// ContainerWait is how long to wait between creating and publishing a
	// media container.
	ContainerWait time.Duration
	HTTPClient    *http.Client
}

// NewInstagramAdapter creates a new Instagram adapter.
func NewInstagramAdapter(cfg InstagramConfig) *InstagramAdapter {
	return &InstagramAdapter{
		graph:         newGraphClient(Instagram, cfg.BaseURL, cfg.HTTPClient),
		timeouts:      cfg.Timeouts.withDefaults(),
		containerWait: cfg.ContainerWait,
	}
}

// Platform returns the platform name.
func (i *InstagramAdapter) Platform() Platform {
	return Instagram
}

// PublishText always fails: Instagram has no text-only posts.
func (i *InstagramAdapter) PublishText(ctx context.Context, target Target, text string) (string, error) {
	return "", unsupported("Instagram requires an image to publish.")
}

// PublishImage creates a media container for the image URL, waits for it and
// publishes it. Either phase failing fails the whole publish.
func (i *InstagramAdapter) PublishImage(ctx context.Context, target Target, text string, image Image) (string, error) {
	if image.URL == "" {
		return "", errors.New("instagram requires a public image URL")
	}

	// Step 1: Create container
	form := url.Values{
		"image_url":    {image.URL},
		"caption":      {text},
		"access_token": {target.AccessToken},
	}
	var container graphID
	if err := i.graph.postForm(ctx, i.timeouts.Publish, "Container creation", "/"+target.Destination+"/media", form, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", ErrEmptyID
	}

	// Wait for container to be ready
	if i.containerWait > 0 {
		timer := time.NewTimer(i.containerWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	// Step 2: Publish
	form = url.Values{
		"creation_id":  {container.ID},
		"access_token": {target.AccessToken},
	}
	var published graphID
	if err := i.graph.postForm(ctx, i.timeouts.Publish, "Publish", "/"+target.Destination+"/media_publish", form, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", ErrEmptyID
	}
	return published.ID, nil
}

type instagramInsights struct {
	LikeCount     int64 `json:"like_count"`
	CommentsCount int64 `json:"comments_count"`
}

// FetchEngagement reads like and comment counts of a media object.
// Instagram exposes no share count.
func (i *InstagramAdapter) FetchEngagement(ctx context.Context, target Target, externalPostID string) (Engagement, error) {
	query := url.Values{
		"access_token": {target.AccessToken},
		"fields":       {"like_count,comments_count"},
	}

	var resp instagramInsights
	if err := i.graph.get(ctx, i.timeouts.Read, "Insights", "/"+externalPostID, query, &resp); err != nil {
		return Engagement{}, err
	}
	return Engagement{Likes: resp.LikeCount, Comments: resp.CommentsCount}, nil
}

// FetchComments lists up to 100 comments of a media object.
func (i *InstagramAdapter) FetchComments(ctx context.Context, target Target, externalPostID string) ([]Comment, error) {
	query := url.Values{
		"access_token": {target.AccessToken},
		"fields":       {"id,text,username,timestamp"},
		"limit":        {"100"},
	}

	var resp graphComments
	if err := i.graph.get(ctx, i.timeouts.Read, "Get comments", "/"+externalPostID+"/comments", query, &resp); err != nil {
		return nil, err
	}
	return resp.toComments(), nil
}

// ReplyToComment answers a comment on a media object.
func (i *InstagramAdapter) ReplyToComment(ctx context.Context, target Target, comment CommentRef, text string) (string, error) {
	form := url.Values{
		"message":      {text},
		"access_token": {target.AccessToken},
	}

	var resp graphID
	if err := i.graph.postForm(ctx, i.timeouts.Read, "Reply", "/"+comment.ID+"/replies", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
