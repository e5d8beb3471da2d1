package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedInFake records the ugcPosts payloads it receives.
type linkedInFake struct {
	server      *httptest.Server
	posts       []ugcPost
	uploads     [][]byte
	register    func(w http.ResponseWriter, baseURL string)
	uploadCode  int
	postHandler func(w http.ResponseWriter)
}

func newLinkedInFake(t *testing.T) *linkedInFake {
	t.Helper()
	f := &linkedInFake{uploadCode: http.StatusCreated}
	f.register = func(w http.ResponseWriter, baseURL string) {
		w.Write([]byte(`{"value":{"asset":"urn:li:digitalmediaAsset:A1","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"` + baseURL + `/upload/A1"}}}}`))
	}
	f.postHandler = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"urn:li:share:900"}`))
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/ugcPosts":
			assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var p ugcPost
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			f.posts = append(f.posts, p)
			f.postHandler(w)
		case r.URL.Path == "/v2/assets":
			assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
			f.register(w, f.server.URL)
		case r.URL.Path == "/upload/A1":
			assert.Equal(t, http.MethodPut, r.Method)
			data, _ := io.ReadAll(r.Body)
			f.uploads = append(f.uploads, data)
			w.WriteHeader(f.uploadCode)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *linkedInFake) adapter() *LinkedInAdapter {
	return NewLinkedInAdapter(LinkedInConfig{BaseURL: f.server.URL})
}

var linkedInTarget = Target{Destination: "urn:li:organization:42", AccessToken: "tok"}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launch.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0644))
	return path
}

func TestLinkedInAdapter_PublishText(t *testing.T) {
	t.Run("id from body", func(t *testing.T) {
		f := newLinkedInFake(t)

		id, err := f.adapter().PublishText(context.Background(), linkedInTarget, "Launch day!")
		require.NoError(t, err)
		assert.Equal(t, "urn:li:share:900", id)

		require.Len(t, f.posts, 1)
		p := f.posts[0]
		assert.Equal(t, "urn:li:organization:42", p.Author)
		assert.Equal(t, "PUBLISHED", p.LifecycleState)
		assert.Equal(t, "NONE", p.SpecificContent.ShareContent.ShareMediaCategory)
		assert.Equal(t, "Launch day!", p.SpecificContent.ShareContent.ShareCommentary.Text)
		assert.Equal(t, "PUBLIC", p.Visibility["com.linkedin.ugc.MemberNetworkVisibility"])
	})

	t.Run("id from header", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.postHandler = func(w http.ResponseWriter) {
			w.Header().Set("X-RestLi-Id", "urn:li:ugcPost:77")
			w.WriteHeader(http.StatusCreated)
		}

		id, err := f.adapter().PublishText(context.Background(), linkedInTarget, "hi")
		require.NoError(t, err)
		assert.Equal(t, "urn:li:ugcPost:77", id)
	})

	t.Run("empty id on success", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.postHandler = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		}

		_, err := f.adapter().PublishText(context.Background(), linkedInTarget, "hi")
		assert.ErrorIs(t, err, ErrEmptyID)
	})

	t.Run("error message", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.postHandler = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"Content is a duplicate","status":422}`))
		}

		_, err := f.adapter().PublishText(context.Background(), linkedInTarget, "hi")
		assert.EqualError(t, err, "Content is a duplicate")
	})

	t.Run("error without body", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.postHandler = func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusForbidden)
		}

		_, err := f.adapter().PublishText(context.Background(), linkedInTarget, "hi")
		assert.EqualError(t, err, "Publish failed (status 403)")
	})
}

func TestLinkedInAdapter_PublishImage(t *testing.T) {
	t.Run("register upload and publish", func(t *testing.T) {
		f := newLinkedInFake(t)

		id, err := f.adapter().PublishImage(context.Background(), linkedInTarget, "caption", Image{Path: writeImage(t)})
		require.NoError(t, err)
		assert.Equal(t, "urn:li:share:900", id)

		require.Len(t, f.uploads, 1)
		assert.Equal(t, "png-bytes", string(f.uploads[0]))

		require.Len(t, f.posts, 1)
		content := f.posts[0].SpecificContent.ShareContent
		assert.Equal(t, "IMAGE", content.ShareMediaCategory)
		require.Len(t, content.Media, 1)
		assert.Equal(t, "urn:li:digitalmediaAsset:A1", content.Media[0].Media)
		assert.Equal(t, "READY", content.Media[0].Status)
	})

	t.Run("register failure falls back to text", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.register = func(w http.ResponseWriter, _ string) {
			w.WriteHeader(http.StatusForbidden)
		}

		id, err := f.adapter().PublishImage(context.Background(), linkedInTarget, "caption", Image{Path: writeImage(t)})
		require.NoError(t, err)
		assert.Equal(t, "urn:li:share:900", id)
		assert.Empty(t, f.uploads)
		require.Len(t, f.posts, 1)
		assert.Equal(t, "NONE", f.posts[0].SpecificContent.ShareContent.ShareMediaCategory)
	})

	t.Run("missing upload url falls back to text", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.register = func(w http.ResponseWriter, _ string) {
			w.Write([]byte(`{"value":{"asset":"urn:li:digitalmediaAsset:A1"}}`))
		}

		_, err := f.adapter().PublishImage(context.Background(), linkedInTarget, "caption", Image{Path: writeImage(t)})
		require.NoError(t, err)
		require.Len(t, f.posts, 1)
		assert.Equal(t, "NONE", f.posts[0].SpecificContent.ShareContent.ShareMediaCategory)
	})

	t.Run("upload failure falls back to text", func(t *testing.T) {
		f := newLinkedInFake(t)
		f.uploadCode = http.StatusInternalServerError

		_, err := f.adapter().PublishImage(context.Background(), linkedInTarget, "caption", Image{Path: writeImage(t)})
		require.NoError(t, err)
		assert.Len(t, f.uploads, 1)
		require.Len(t, f.posts, 1)
		assert.Equal(t, "NONE", f.posts[0].SpecificContent.ShareContent.ShareMediaCategory)
	})
}

func TestLinkedInAdapter_ReadCalls(t *testing.T) {
	const postURN = "urn:li:share:900"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/socialActions/"+postURN:
			w.Write([]byte(`{"likesSummary":{"totalLikes":8},"commentsSummary":{"aggregatedTotalComments":2}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v2/socialActions/"+postURN+"/comments":
			w.Write([]byte(`{"elements":[{"id":"6001","$URN":"urn:li:comment:(urn:li:share:900,6001)","actor":"urn:li:person:abc","message":{"text":"Great"},"created":{"time":1760529600000}}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v2/socialActions/"+postURN+"/comments":
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "urn:li:organization:42", payload["actor"])
			assert.Equal(t, "urn:li:comment:(urn:li:share:900,6001)", payload["parentComment"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"6002"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	li := NewLinkedInAdapter(LinkedInConfig{BaseURL: server.URL})
	ctx := context.Background()

	eng, err := li.FetchEngagement(ctx, linkedInTarget, postURN)
	require.NoError(t, err)
	assert.Equal(t, Engagement{Likes: 8, Comments: 2}, eng)

	comments, err := li.FetchComments(ctx, linkedInTarget, postURN)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "urn:li:comment:(urn:li:share:900,6001)", comments[0].ID)
	assert.Equal(t, "Great", comments[0].Text)
	assert.False(t, comments[0].CreatedAt.IsZero())

	id, err := li.ReplyToComment(ctx, linkedInTarget, CommentRef{ID: comments[0].ID, PostID: postURN}, "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "6002", id)
}
