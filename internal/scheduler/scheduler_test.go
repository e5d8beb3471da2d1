package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/post"
)

// fakePublisher finishes claimed posts directly in the store.
type fakePublisher struct {
	store *db.Store

	mu        sync.Mutex
	published []int64
	failed    []int64

	err      error
	panicMsg string
	entered  chan struct{}
	block    chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, postID int64) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return f.err
	}

	f.mu.Lock()
	f.published = append(f.published, postID)
	f.mu.Unlock()

	_, err := f.store.FinishPost(ctx, postID, post.StatusPublished, time.Now())
	return err
}

func (f *fakePublisher) ForceFail(ctx context.Context, postID int64) error {
	f.mu.Lock()
	f.failed = append(f.failed, postID)
	f.mu.Unlock()

	_, err := f.store.ForceFailPost(ctx, postID)
	return err
}

func scheduledPost(t *testing.T, store *db.Store, at time.Time) *db.Post {
	t.Helper()
	at = at.UTC()
	p, err := store.CreatePost(context.Background(), db.CreatePostParams{
		CreatedBy:   1,
		Content:     "scheduled content",
		Status:      post.StatusScheduled,
		ScheduledAt: &at,
	})
	require.NoError(t, err)
	return p
}

func postStatus(t *testing.T, store *db.Store, id int64) post.Status {
	t.Helper()
	p, err := store.GetPost(context.Background(), id)
	require.NoError(t, err)
	return post.Status(p.Status)
}

func newTestScheduler(store *db.Store, pub Publisher) *Scheduler {
	return New(Config{Store: store, Publisher: pub, Interval: time.Hour})
}

func TestTick_PublishesDuePost(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickReport{Due: 1, Claimed: 1, Published: 1}, report)
	assert.Equal(t, []int64{due.ID}, pub.published)
	assert.Equal(t, post.StatusPublished, postStatus(t, store, due.ID))
	assert.True(t, s.Health().GetStatus(ComponentScheduler).Healthy)
	assert.True(t, s.Health().GetStatus(ComponentDatabase).Healthy)
}

func TestTick_LeavesFuturePostAlone(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	future := scheduledPost(t, store, time.Now().Add(time.Hour))

	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickReport{}, report)
	assert.Empty(t, pub.published)
	assert.Equal(t, post.StatusScheduled, postStatus(t, store, future.ID))
}

func TestTick_NoDuePosts(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	report, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Due)
	assert.Equal(t, "no posts due", s.Health().GetStatus(ComponentScheduler).Message)
}

func TestTick_BackToBackPublishesOnce(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Due)
	assert.Equal(t, []int64{due.ID}, pub.published)
}

func TestTick_OverlappingTickIsSkipped(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{
		store:   store,
		entered: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	done := make(chan TickReport)
	go func() {
		report, _ := s.Tick(context.Background())
		done <- report
	}()

	select {
	case <-pub.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick never reached the publisher")
	}

	// The claim is committed before the publisher runs.
	assert.Equal(t, post.StatusPublishing, postStatus(t, store, due.ID))

	overlap, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, overlap.Skipped)

	close(pub.block)
	first := <-done
	assert.Equal(t, 1, first.Published)
	assert.Equal(t, []int64{due.ID}, pub.published)
}

func TestTick_ClaimedElsewhereIsSkipped(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	// Another worker already holds the claim.
	claimed, err := store.ClaimPost(context.Background(), due.ID, post.StatusScheduled)
	require.NoError(t, err)
	require.True(t, claimed)

	report, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Claimed)
	assert.Empty(t, pub.published)
}

func TestTick_PublishErrorForcesFailed(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store, err: errors.New("store went away")}
	s := newTestScheduler(store, pub)

	first := scheduledPost(t, store, time.Now().Add(-2*time.Minute))
	second := scheduledPost(t, store, time.Now().Add(-time.Minute))

	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Claimed)
	assert.Equal(t, 2, report.Failed)
	assert.ElementsMatch(t, []int64{first.ID, second.ID}, pub.failed)
	assert.Equal(t, post.StatusFailed, postStatus(t, store, first.ID))
	assert.Equal(t, post.StatusFailed, postStatus(t, store, second.ID))
}

func TestTick_PublishPanicForcesFailed(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store, panicMsg: "boom"}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	report, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, post.StatusFailed, postStatus(t, store, due.ID))
}

func TestTick_DatabaseErrorMarksUnhealthy(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	require.NoError(t, store.Close())

	_, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.False(t, s.Health().GetStatus(ComponentDatabase).Healthy)
	assert.False(t, s.Health().IsOverallHealthy())
}

func TestRun_TicksImmediatelyAndStops(t *testing.T) {
	store := db.NewTestStore(t)
	pub := &fakePublisher{store: store}
	s := newTestScheduler(store, pub)

	due := scheduledPost(t, store, time.Now().Add(-time.Minute))

	// A post left in publishing is reported but not touched.
	stuck, err := store.CreatePost(context.Background(), db.CreatePostParams{
		CreatedBy: 1,
		Content:   "stuck",
		Status:    post.StatusPublishing,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		p, err := store.GetPost(context.Background(), due.ID)
		return err == nil && post.Status(p.Status) == post.StatusPublished
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, post.StatusPublishing, postStatus(t, store, stuck.ID))
}

func TestHealth_SetHealthy(t *testing.T) {
	h := NewHealth()

	h.SetHealthy(ComponentScheduler, "all good")

	status := h.GetStatus(ComponentScheduler)
	require.NotNil(t, status)
	assert.True(t, status.Healthy)
	assert.Equal(t, "all good", status.Message)
	assert.Empty(t, status.LastError)
	assert.WithinDuration(t, time.Now(), status.LastCheck, time.Second)
	assert.WithinDuration(t, time.Now(), status.LastSuccess, time.Second)
}

func TestHealth_SetUnhealthyKeepsLastSuccess(t *testing.T) {
	h := NewHealth()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	h.SetHealthy(ComponentDatabase, "reachable")

	h.now = func() time.Time { return fixed.Add(time.Minute) }
	h.SetUnhealthy(ComponentDatabase, assert.AnError)

	status := h.GetStatus(ComponentDatabase)
	require.NotNil(t, status)
	assert.False(t, status.Healthy)
	assert.Equal(t, assert.AnError.Error(), status.LastError)
	assert.Equal(t, fixed, status.LastSuccess)
	assert.Equal(t, fixed.Add(time.Minute), status.LastCheck)
}

func TestHealth_GetStatus_NotFound(t *testing.T) {
	assert.Nil(t, NewHealth().GetStatus("nonexistent"))
}

func TestHealth_Snapshot(t *testing.T) {
	h := NewHealth()
	h.SetHealthy("comp1", "ok")
	h.SetUnhealthy("comp2", assert.AnError)

	snap := h.Snapshot()
	assert.Len(t, snap, 2)
	assert.True(t, snap["comp1"].Healthy)
	assert.False(t, snap["comp2"].Healthy)

	// Mutating the copy leaves the tracker alone.
	delete(snap, "comp1")
	assert.NotNil(t, h.GetStatus("comp1"))
}

func TestHealth_IsOverallHealthy(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		h := NewHealth()
		h.SetHealthy("comp1", "ok")
		h.SetHealthy("comp2", "ok")
		assert.True(t, h.IsOverallHealthy())
	})

	t.Run("one unhealthy", func(t *testing.T) {
		h := NewHealth()
		h.SetHealthy("comp1", "ok")
		h.SetUnhealthy("comp2", assert.AnError)
		assert.False(t, h.IsOverallHealthy())
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, NewHealth().IsOverallHealthy())
	})
}
