// Package engagement refreshes the like, comment and share counters of
// successfully published results.
package engagement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/platform"
)

// DefaultLimit is how many recent success rows one sync looks at.
const DefaultLimit = 100

// Report summarises a sync run.
type Report struct {
	Checked int
	Updated int
	Skipped int
	Failed  int
}

// Syncer pulls engagement counters from the platforms.
type Syncer struct {
	store    *db.Store
	registry account.Registry
	adapters platform.Set
}

// New creates a new syncer.
func New(store *db.Store, registry account.Registry, adapters platform.Set) *Syncer {
	return &Syncer{
		store:    store,
		registry: registry,
		adapters: adapters,
	}
}

// Sync refreshes the counters of the newest success rows. A failure on one
// row is logged and counted; only listing errors are returned.
func (s *Syncer) Sync(ctx context.Context, limit int64) (Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results, err := s.store.ListSuccessfulResults(ctx, limit)
	if err != nil {
		return Report{}, fmt.Errorf("list successful results: %w", err)
	}

	var report Report
	for _, r := range results {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		updated, err := s.syncOne(ctx, r)
		switch {
		case err != nil:
			report.Failed++
			slog.Warn("failed to sync engagement",
				"result_id", r.ID,
				"platform", r.Platform,
				"error", err,
			)
		case !updated:
			report.Skipped++
		default:
			report.Updated++
		}
	}

	slog.Info("engagement sync complete",
		"checked", report.Checked,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Syncer) syncOne(ctx context.Context, r *db.PostResult) (bool, error) {
	acct, err := s.registry.Get(ctx, r.AccountID)
	if err != nil {
		return false, err
	}
	if acct == nil || !acct.Active {
		return false, nil
	}

	adapter, ok := s.adapters.Get(acct.Platform)
	if !ok {
		return false, nil
	}

	counts, err := adapter.FetchEngagement(ctx, acct.Target(), r.ExternalPostID.String)
	if err != nil {
		return false, err
	}

	err = s.store.UpdateResultEngagement(ctx, db.UpdateResultEngagementParams{
		ID:       r.ID,
		Likes:    counts.Likes,
		Comments: counts.Comments,
		Shares:   counts.Shares,
	})
	if err != nil {
		return false, fmt.Errorf("update engagement: %w", err)
	}
	return true, nil
}
