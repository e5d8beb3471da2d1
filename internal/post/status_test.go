package post

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusScheduled, true},
		{StatusDraft, StatusPublishing, true},
		{StatusScheduled, StatusPublishing, true},
		{StatusScheduled, StatusScheduled, true},
		{StatusPublishing, StatusPublished, true},
		{StatusPublishing, StatusFailed, true},
		{StatusFailed, StatusPublishing, true},
		{StatusPublished, StatusPublishing, true},
		{StatusDraft, StatusPublished, false},
		{StatusScheduled, StatusFailed, false},
		{StatusPublishing, StatusDraft, false},
		{StatusPublishing, StatusPublishing, false},
		{StatusFailed, StatusPublished, false},
		{StatusPublished, StatusDraft, false},
		{Status("bogus"), StatusPublishing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition(t *testing.T) {
	require.NoError(t, Transition(StatusDraft, StatusScheduled))

	err := Transition(StatusPublishing, StatusDraft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusPublishing, te.From)
	assert.Equal(t, StatusDraft, te.To)
	assert.Equal(t, "cannot move post from publishing to draft", err.Error())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDraft.Editable())
	assert.True(t, StatusScheduled.Editable())
	assert.False(t, StatusPublishing.Editable())
	assert.False(t, StatusPublished.Editable())

	assert.True(t, StatusPublished.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPublishing.Terminal())

	assert.True(t, StatusFailed.Republishable())
	assert.False(t, StatusDraft.Republishable())

	assert.True(t, StatusScheduled.Claimable())
	assert.False(t, StatusFailed.Claimable())

	assert.True(t, StatusDraft.Valid())
	assert.False(t, Status("").Valid())

	assert.True(t, InitialStatus(StatusPublishing))
	assert.False(t, InitialStatus(StatusPublished))
}

func TestValidateSchedule(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateSchedule(now.Add(time.Minute), now))
	assert.ErrorIs(t, ValidateSchedule(now, now), ErrNotInFuture)
	assert.ErrorIs(t, ValidateSchedule(now.Add(-time.Hour), now), ErrNotInFuture)
}

func TestCheckReady(t *testing.T) {
	assert.NoError(t, CheckReady("Launch day!", 2))
	assert.ErrorIs(t, CheckReady("", 1), ErrNoContent)
	assert.ErrorIs(t, CheckReady("  \n", 1), ErrNoContent)
	assert.ErrorIs(t, CheckReady("Launch day!", 0), ErrNoTargets)
}

func TestCheck(t *testing.T) {
	ts := time.Now()

	t.Run("valid combinations", func(t *testing.T) {
		assert.NoError(t, Check(StatusDraft, nil, nil))
		assert.NoError(t, Check(StatusScheduled, &ts, nil))
		assert.NoError(t, Check(StatusPublishing, nil, nil))
		assert.NoError(t, Check(StatusPublished, nil, &ts))
		assert.NoError(t, Check(StatusFailed, nil, nil))
	})

	t.Run("scheduled without timestamp", func(t *testing.T) {
		assert.ErrorIs(t, Check(StatusScheduled, nil, nil), ErrInvariant)
	})

	t.Run("stale scheduled_at", func(t *testing.T) {
		assert.ErrorIs(t, Check(StatusPublishing, &ts, nil), ErrInvariant)
	})

	t.Run("failed with published_at", func(t *testing.T) {
		assert.ErrorIs(t, Check(StatusFailed, nil, &ts), ErrInvariant)
	})
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, StatusFailed, Aggregate(0))
	assert.Equal(t, StatusPublished, Aggregate(1))
	assert.Equal(t, StatusPublished, Aggregate(5))
}
