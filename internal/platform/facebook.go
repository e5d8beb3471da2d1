package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// FacebookAdapter publishes to Facebook Pages through the Graph API.
type FacebookAdapter struct {
	graph    *graphClient
	timeouts Timeouts
}

// FacebookConfig holds configuration for the Facebook adapter.
type FacebookConfig struct {
	BaseURL    string
	Timeouts   Timeouts
	HTTPClient *http.Client
}

// NewFacebookAdapter creates a new Facebook adapter.
func NewFacebookAdapter(cfg FacebookConfig) *FacebookAdapter {
	return &FacebookAdapter{
		graph:    newGraphClient(Facebook, cfg.BaseURL, cfg.HTTPClient),
		timeouts: cfg.Timeouts.withDefaults(),
	}
}

// Platform returns the platform name.
func (f *FacebookAdapter) Platform() Platform {
	return Facebook
}

// PublishText posts a message to the page feed.
func (f *FacebookAdapter) PublishText(ctx context.Context, target Target, text string) (string, error) {
	form := url.Values{
		"message":      {text},
		"access_token": {target.AccessToken},
	}

	var resp graphID
	if err := f.graph.postForm(ctx, f.timeouts.Publish, "Publish", "/"+target.Destination+"/feed", form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrEmptyID
	}
	return resp.ID, nil
}

// PublishImage uploads the image file as a page photo with the text as message.
func (f *FacebookAdapter) PublishImage(ctx context.Context, target Target, text string, image Image) (string, error) {
	if image.Path == "" {
		return "", fmt.Errorf("facebook photo requires a local image file")
	}

	form := url.Values{
		"message":      {text},
		"access_token": {target.AccessToken},
	}

	var resp graphID
	if err := f.graph.postFile(ctx, f.timeouts.Image, "Photo publish", "/"+target.Destination+"/photos", form, "source", image.Path, &resp); err != nil {
		return "", err
	}

	id := resp.PostID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return "", ErrEmptyID
	}
	return id, nil
}

type facebookInsights struct {
	Likes struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"likes"`
	Comments struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
	Shares struct {
		Count int64 `json:"count"`
	} `json:"shares"`
}

// FetchEngagement reads likes, comments and shares of a page post.
func (f *FacebookAdapter) FetchEngagement(ctx context.Context, target Target, externalPostID string) (Engagement, error) {
	query := url.Values{
		"access_token": {target.AccessToken},
		"fields":       {"likes.summary(true),comments.summary(true),shares"},
	}

	var resp facebookInsights
	if err := f.graph.get(ctx, f.timeouts.Read, "Insights", "/"+externalPostID, query, &resp); err != nil {
		return Engagement{}, err
	}
	return Engagement{
		Likes:    resp.Likes.Summary.TotalCount,
		Comments: resp.Comments.Summary.TotalCount,
		Shares:   resp.Shares.Count,
	}, nil
}

// FetchComments lists up to 100 comments of a page post.
func (f *FacebookAdapter) FetchComments(ctx context.Context, target Target, externalPostID string) ([]Comment, error) {
	query := url.Values{
		"access_token": {target.AccessToken},
		"fields":       {"id,message,from,created_time"},
		"limit":        {"100"},
	}

	var resp graphComments
	if err := f.graph.get(ctx, f.timeouts.Read, "Get comments", "/"+externalPostID+"/comments", query, &resp); err != nil {
		return nil, err
	}
	return resp.toComments(), nil
}

// ReplyToComment answers a comment as the page.
func (f *FacebookAdapter) ReplyToComment(ctx context.Context, target Target, comment CommentRef, text string) (string, error) {
	form := url.Values{
		"message":      {text},
		"access_token": {target.AccessToken},
	}

	var resp graphID
	if err := f.graph.postForm(ctx, f.timeouts.Read, "Reply", "/"+comment.ID+"/comments", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
