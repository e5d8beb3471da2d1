package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultLinkedInURL is the LinkedIn REST API.
const DefaultLinkedInURL = "https://api.linkedin.com"

// LinkedInAdapter publishes UGC posts for LinkedIn members and organizations.
type LinkedInAdapter struct {
	httpClient *http.Client
	baseURL    string
	timeouts   Timeouts
}

// LinkedInConfig holds configuration for the LinkedIn adapter.
type LinkedInConfig struct {
	BaseURL    string
	Timeouts   Timeouts
	HTTPClient *http.Client
}

// NewLinkedInAdapter creates a new LinkedIn adapter.
func NewLinkedInAdapter(cfg LinkedInConfig) *LinkedInAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultLinkedInURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LinkedInAdapter{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeouts:   cfg.Timeouts.withDefaults(),
	}
}

// Platform returns the platform name.
func (l *LinkedInAdapter) Platform() Platform {
	return LinkedIn
}

type ugcPost struct {
	Author          string            `json:"author"`
	LifecycleState  string            `json:"lifecycleState"`
	SpecificContent specificContent   `json:"specificContent"`
	Visibility      map[string]string `json:"visibility"`
}

type specificContent struct {
	ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
}

type shareContent struct {
	ShareCommentary    shareText    `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type shareText struct {
	Text string `json:"text"`
}

type shareMedia struct {
	Status string `json:"status"`
	Media  string `json:"media"`
}

func newUGCPost(author, text, asset string) ugcPost {
	content := shareContent{
		ShareCommentary:    shareText{Text: text},
		ShareMediaCategory: "NONE",
	}
	if asset != "" {
		content.ShareMediaCategory = "IMAGE"
		content.Media = []shareMedia{{Status: "READY", Media: asset}}
	}
	return ugcPost{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: specificContent{ShareContent: content},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
}

// linkedInResponse is a raw API response.
type linkedInResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r *linkedInResponse) ok() bool {
	return r.status == http.StatusOK || r.status == http.StatusCreated
}

// message extracts the human-readable error of a failed call.
func (r *linkedInResponse) message() string {
	var data struct {
		Message string `json:"message"`
	}
	if len(r.body) > 0 {
		_ = json.Unmarshal(r.body, &data)
	}
	return data.Message
}

func (l *LinkedInAdapter) do(ctx context.Context, timeout time.Duration, method, rawURL, token string, payload interface{}) (*linkedInResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &linkedInResponse{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}

// PublishText publishes a text-only UGC post.
func (l *LinkedInAdapter) PublishText(ctx context.Context, target Target, text string) (string, error) {
	return l.publish(ctx, target, text, "", "Publish")
}

func (l *LinkedInAdapter) publish(ctx context.Context, target Target, text, asset, op string) (string, error) {
	resp, err := l.do(ctx, l.timeouts.Publish, http.MethodPost, l.baseURL+"/v2/ugcPosts", target.AccessToken,
		newUGCPost(target.Destination, text, asset))
	if err != nil {
		return "", err
	}

	slog.Debug("linkedin publish response", "status", resp.status, "image", asset != "")

	if !resp.ok() {
		return "", rejected(LinkedIn, resp.status, resp.message(), op)
	}

	var created struct {
		ID string `json:"id"`
	}
	if len(resp.body) > 0 {
		_ = json.Unmarshal(resp.body, &created)
	}
	id := created.ID
	if id == "" {
		id = resp.header.Get("X-RestLi-Id")
	}
	if id == "" {
		return "", ErrEmptyID
	}
	return id, nil
}

type registerUploadRequest struct {
	RegisterUploadRequest registerUpload `json:"registerUploadRequest"`
}

type registerUpload struct {
	Recipes              []string              `json:"recipes"`
	Owner                string                `json:"owner"`
	ServiceRelationships []serviceRelationship `json:"serviceRelationships"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism struct {
			HTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

// PublishImage registers an upload, sends the image binary and publishes a
// post referencing the asset. When registration or the upload fails the post
// goes out as text only.
func (l *LinkedInAdapter) PublishImage(ctx context.Context, target Target, text string, image Image) (string, error) {
	log := slog.With("platform", LinkedIn, "author", target.Destination)

	// Step 1: Register image upload
	register := registerUploadRequest{
		RegisterUploadRequest: registerUpload{
			Recipes: []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			Owner:   target.Destination,
			ServiceRelationships: []serviceRelationship{{
				RelationshipType: "OWNER",
				Identifier:       "urn:li:userGeneratedContent",
			}},
		},
	}
	resp, err := l.do(ctx, l.timeouts.Read, http.MethodPost, l.baseURL+"/v2/assets?action=registerUpload", target.AccessToken, register)
	if err != nil || !resp.ok() {
		log.Warn("image register failed, falling back to text-only post", "error", registerFailure(resp, err))
		return l.PublishText(ctx, target, text)
	}

	var registered registerUploadResponse
	_ = json.Unmarshal(resp.body, &registered)
	uploadURL := registered.Value.UploadMechanism.HTTPRequest.UploadURL
	if uploadURL == "" {
		log.Warn("no upload URL returned, falling back to text-only post")
		return l.PublishText(ctx, target, text)
	}

	// Step 2: Upload binary
	if err := l.upload(ctx, uploadURL, target.AccessToken, image.Path); err != nil {
		log.Warn("image upload failed, falling back to text-only post", "error", err)
		return l.PublishText(ctx, target, text)
	}

	// Step 3: Create post with image
	return l.publish(ctx, target, text, registered.Value.Asset, "Image post")
}

func registerFailure(resp *linkedInResponse, err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("status %d: %s", resp.status, string(resp.body))
}

func (l *LinkedInAdapter) upload(ctx context.Context, uploadURL, token, path string) error {
	if path == "" {
		return errors.New("no local image file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeouts.Image)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload failed (status %d)", resp.StatusCode)
	}
	return nil
}

func (l *LinkedInAdapter) socialActionsURL(urn string, suffix string) string {
	return l.baseURL + "/v2/socialActions/" + url.PathEscape(urn) + suffix
}

// FetchEngagement reads the like and comment summaries of a post.
func (l *LinkedInAdapter) FetchEngagement(ctx context.Context, target Target, externalPostID string) (Engagement, error) {
	resp, err := l.do(ctx, l.timeouts.Read, http.MethodGet, l.socialActionsURL(externalPostID, ""), target.AccessToken, nil)
	if err != nil {
		return Engagement{}, err
	}
	if resp.status != http.StatusOK {
		return Engagement{}, rejected(LinkedIn, resp.status, resp.message(), "Insights")
	}

	var data struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	if err := json.Unmarshal(resp.body, &data); err != nil {
		return Engagement{}, fmt.Errorf("parse response: %w", err)
	}
	return Engagement{
		Likes:    data.LikesSummary.TotalLikes,
		Comments: data.CommentsSummary.AggregatedTotalComments,
	}, nil
}

// FetchComments lists the comments of a post.
func (l *LinkedInAdapter) FetchComments(ctx context.Context, target Target, externalPostID string) ([]Comment, error) {
	resp, err := l.do(ctx, l.timeouts.Read, http.MethodGet, l.socialActionsURL(externalPostID, "/comments"), target.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, rejected(LinkedIn, resp.status, resp.message(), "Get comments")
	}

	var data struct {
		Elements []struct {
			ID      string `json:"id"`
			URN     string `json:"$URN"`
			Actor   string `json:"actor"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
			Created struct {
				Time int64 `json:"time"`
			} `json:"created"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(resp.body, &data); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	comments := make([]Comment, 0, len(data.Elements))
	for _, e := range data.Elements {
		id := e.URN
		if id == "" {
			id = e.ID
		}
		c := Comment{ID: id, AuthorName: e.Actor, Text: e.Message.Text}
		if e.Created.Time > 0 {
			c.CreatedAt = time.UnixMilli(e.Created.Time).UTC()
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// ReplyToComment posts a nested comment on the post as the account.
func (l *LinkedInAdapter) ReplyToComment(ctx context.Context, target Target, comment CommentRef, text string) (string, error) {
	payload := map[string]interface{}{
		"actor":   target.Destination,
		"message": shareText{Text: text},
	}
	if comment.ID != "" {
		payload["parentComment"] = comment.ID
	}

	resp, err := l.do(ctx, l.timeouts.Read, http.MethodPost, l.socialActionsURL(comment.PostID, "/comments"), target.AccessToken, payload)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", rejected(LinkedIn, resp.status, resp.message(), "Reply")
	}

	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.body, &created)
	return created.ID, nil
}
