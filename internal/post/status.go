// Package post defines the lifecycle of a post: its statuses, the legal
// transitions between them and the timestamp invariants each status carries.
package post

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle status of a post.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusScheduled  Status = "scheduled"
	StatusPublishing Status = "publishing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

var (
	// ErrInvalidTransition is wrapped by every TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotInFuture is returned when a schedule time is not after now.
	ErrNotInFuture = errors.New("scheduled time must be in the future")

	// ErrInvariant is returned by Check when timestamps disagree with status.
	ErrInvariant = errors.New("post invariant violated")

	// ErrNoContent and ErrNoTargets are returned by CheckReady.
	ErrNoContent = errors.New("content is required")
	ErrNoTargets = errors.New("at least one account is required")
)

// transitions lists every legal from -> to move.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusScheduled, StatusPublishing},
	StatusScheduled:  {StatusScheduled, StatusPublishing},
	StatusPublishing: {StatusPublished, StatusFailed},
	StatusPublished:  {StatusPublishing},
	StatusFailed:     {StatusPublishing},
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move post from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s ends a publish attempt.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// Editable reports whether content, targets and schedule may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusScheduled
}

// Claimable reports whether a publish may start from s without republishing.
func (s Status) Claimable() bool {
	return s == StatusDraft || s == StatusScheduled
}

// Republishable reports whether s may re-enter the pipeline via republish.
func (s Status) Republishable() bool {
	return s.Terminal()
}

// CanTransition reports whether moving from -> to is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns a *TransitionError if from -> to is not legal.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// InitialStatus reports whether an authoring action may create a post in s.
func InitialStatus(s Status) bool {
	return s == StatusDraft || s == StatusScheduled || s == StatusPublishing
}

// ValidateSchedule checks that at is strictly after now.
func ValidateSchedule(at, now time.Time) error {
	if !at.After(now) {
		return ErrNotInFuture
	}
	return nil
}

// CheckReady checks what a post needs before it may leave draft: non-empty
// content and at least one target.
func CheckReady(content string, targets int) error {
	if strings.TrimSpace(content) == "" {
		return ErrNoContent
	}
	if targets == 0 {
		return ErrNoTargets
	}
	return nil
}

// Check verifies that scheduledAt is set iff status is scheduled and
// publishedAt is set iff status is published.
func Check(status Status, scheduledAt, publishedAt *time.Time) error {
	if (status == StatusScheduled) != (scheduledAt != nil) {
		return fmt.Errorf("%w: status %s with scheduled_at set=%t", ErrInvariant, status, scheduledAt != nil)
	}
	if (status == StatusPublished) != (publishedAt != nil) {
		return fmt.Errorf("%w: status %s with published_at set=%t", ErrInvariant, status, publishedAt != nil)
	}
	return nil
}

// Aggregate derives the terminal status of an attempt from the number of
// successful results the post holds.
func Aggregate(successes int) Status {
	if successes > 0 {
		return StatusPublished
	}
	return StatusFailed
}
