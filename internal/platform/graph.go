package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultGraphURL is the Meta Graph API used by Facebook and Instagram.
const DefaultGraphURL = "https://graph.facebook.com/v22.0"

// graphClient makes Meta Graph API calls on behalf of one platform.
type graphClient struct {
	httpClient *http.Client
	baseURL    string
	platform   Platform
}

func newGraphClient(p Platform, baseURL string, httpClient *http.Client) *graphClient {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &graphClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		platform:   p,
	}
}

// graphError is the error envelope of every Graph API response.
type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// graphID is the response of calls that create an object.
type graphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (g *graphClient) postForm(ctx context.Context, timeout time.Duration, op, path string, form url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return g.do(req, op, out)
}

func (g *graphClient) postFile(ctx context.Context, timeout time.Duration, op, path string, form url.Values, field, filePath string, out interface{}) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				return fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	part, err := mw.CreateFormFile(field, filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return g.do(req, op, out)
}

func (g *graphClient) get(ctx context.Context, timeout time.Duration, op, path string, query url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return g.do(req, op, out)
}

func (g *graphClient) do(req *http.Request, op string, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Graph reports failures in the body, sometimes with a 200.
	var envelope graphError
	_ = json.Unmarshal(respBody, &envelope)
	if envelope.Error != nil {
		return rejected(g.platform, resp.StatusCode, envelope.Error.Message, op)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rejected(g.platform, resp.StatusCode, "", op)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// graphComments is the response of a comments edge.
type graphComments struct {
	Data []struct {
		ID          string `json:"id"`
		Message     string `json:"message"`
		Text        string `json:"text"`
		Username    string `json:"username"`
		CreatedTime string `json:"created_time"`
		Timestamp   string `json:"timestamp"`
		From        *struct {
			Name string `json:"name"`
		} `json:"from"`
	} `json:"data"`
}

// graphTimeLayout is the layout Graph uses for created_time and timestamp.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

func (c graphComments) toComments() []Comment {
	comments := make([]Comment, 0, len(c.Data))
	for _, d := range c.Data {
		cm := Comment{ID: d.ID, Text: d.Message, AuthorName: d.Username}
		if cm.Text == "" {
			cm.Text = d.Text
		}
		if d.From != nil && d.From.Name != "" {
			cm.AuthorName = d.From.Name
		}
		ts := d.CreatedTime
		if ts == "" {
			ts = d.Timestamp
		}
		if t, err := time.Parse(graphTimeLayout, ts); err == nil {
			cm.CreatedAt = t.UTC()
		}
		comments = append(comments, cm)
	}
	return comments
}
