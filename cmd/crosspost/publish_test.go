package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/publisher"
)

func TestCheckReady(t *testing.T) {
	store := db.NewTestStore(t)
	ctx := context.Background()

	create := func(content string, status post.Status, targets ...int64) int64 {
		t.Helper()
		arg := db.CreatePostParams{CreatedBy: 1, Content: content, Status: status}
		if status == post.StatusScheduled {
			at := time.Now().Add(time.Hour).UTC()
			arg.ScheduledAt = &at
		}
		p, _, err := store.CreatePostWithTargets(ctx, arg, targets)
		require.NoError(t, err)
		return p.ID
	}

	t.Run("ready draft", func(t *testing.T) {
		assert.NoError(t, checkReady(ctx, store, create("Launch day!", post.StatusDraft, 1)))
	})

	t.Run("draft without targets", func(t *testing.T) {
		err := checkReady(ctx, store, create("Launch day!", post.StatusDraft))
		assert.ErrorIs(t, err, post.ErrNoTargets)
	})

	t.Run("draft without content", func(t *testing.T) {
		err := checkReady(ctx, store, create(" ", post.StatusDraft, 1))
		assert.ErrorIs(t, err, post.ErrNoContent)
	})

	t.Run("scheduled without targets", func(t *testing.T) {
		err := checkReady(ctx, store, create("Later", post.StatusScheduled))
		assert.ErrorIs(t, err, post.ErrNoTargets)
	})

	t.Run("other statuses are left to the publisher", func(t *testing.T) {
		id := create("", post.StatusDraft)
		ok, err := store.ClaimPost(ctx, id, post.StatusDraft)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NoError(t, checkReady(ctx, store, id))
	})

	t.Run("missing post", func(t *testing.T) {
		assert.ErrorIs(t, checkReady(ctx, store, 9999), publisher.ErrNotFound)
	})

	// The check does not touch the post.
	id := create("", post.StatusDraft)
	require.Error(t, checkReady(ctx, store, id))
	got, err := store.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(post.StatusDraft), got.Status)
}
