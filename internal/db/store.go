package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// CreatePostWithTargets inserts a post and its ordered targets in one
// transaction. Duplicate account ids are dropped, keeping the first position.
func (s *Store) CreatePostWithTargets(ctx context.Context, arg CreatePostParams, accountIDs []int64) (*Post, []int64, error) {
	targets := DedupeTargets(accountIDs)

	var created *Post
	err := s.ExecTx(ctx, func(q *Queries) error {
		p, err := q.CreatePost(ctx, arg)
		if err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		for i, id := range targets {
			if err := q.AddPostTarget(ctx, p.ID, id, i); err != nil {
				return fmt.Errorf("insert target %d: %w", id, err)
			}
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, targets, nil
}

// EditPost updates the content of a draft or scheduled post and, when
// accountIDs is non-nil, replaces its targets, all in one transaction. It
// reports false and changes nothing once the post has left draft/scheduled.
func (s *Store) EditPost(ctx context.Context, arg UpdatePostContentParams, accountIDs []int64) (bool, error) {
	var edited bool
	err := s.ExecTx(ctx, func(q *Queries) error {
		// The guarded update also locks the row against a concurrent claim.
		ok, err := q.UpdatePostContent(ctx, arg)
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		if !ok {
			return nil
		}

		if accountIDs != nil {
			if err := q.DeletePostTargets(ctx, arg.ID); err != nil {
				return fmt.Errorf("delete targets: %w", err)
			}
			for i, id := range DedupeTargets(accountIDs) {
				if err := q.AddPostTarget(ctx, arg.ID, id, i); err != nil {
					return fmt.Errorf("insert target %d: %w", id, err)
				}
			}
		}
		edited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return edited, nil
}

// DedupeTargets removes repeated account ids, preserving first-seen order.
func DedupeTargets(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// NewTestStore provides a migrated SQLite database for use in other packages.
func NewTestStore(t testing.TB) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	store, err := NewStore(ctx, dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		t.Fatalf("migrate test store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		os.Remove(dbPath)
	})

	return store
}
