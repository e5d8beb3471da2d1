// Package scheduler promotes due scheduled posts into the publish pipeline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/post"
	"github.com/abdulachik/crosspost/internal/telemetry"
)

// Publisher is the part of the publisher the scheduler drives.
type Publisher interface {
	Publish(ctx context.Context, postID int64) error
	ForceFail(ctx context.Context, postID int64) error
}

// Scheduler runs the periodic due-post check.
type Scheduler struct {
	store     *db.Store
	publisher Publisher
	interval  time.Duration
	health    *Health
	now       func() time.Time

	// running guards against overlapping ticks.
	running sync.Mutex

	tickCounter metric.Int64Counter
}

// Config holds scheduler configuration.
type Config struct {
	Store     *db.Store
	Publisher Publisher
	Interval  time.Duration
	Health    *Health
}

// TickReport describes one pass over the due posts.
type TickReport struct {
	// Skipped is set when another tick was still running.
	Skipped   bool
	Due       int
	Claimed   int
	Published int
	Failed    int
}

// New creates a new scheduler.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	health := cfg.Health
	if health == nil {
		health = NewHealth()
	}

	tickCounter, err := telemetry.Meter().Int64Counter("crosspost.scheduler.ticks",
		metric.WithDescription("Scheduler ticks by result"))
	if err != nil {
		slog.Warn("failed to create tick counter", "error", err)
	}

	return &Scheduler{
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		interval:    interval,
		health:      health,
		now:         time.Now,
		tickCounter: tickCounter,
	}
}

// Run ticks once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("starting scheduler", "interval", s.interval)

	s.reportStuck(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler tick failed", "error", err)
	}
}

// reportStuck logs posts left in publishing by a crash. They are left as is:
// an operator decides between republish and force-fail.
func (s *Scheduler) reportStuck(ctx context.Context) {
	stuck, err := s.store.ListPostsByStatus(ctx, post.StatusPublishing)
	if err != nil {
		s.health.SetUnhealthy(ComponentDatabase, err)
		slog.Error("failed to list publishing posts", "error", err)
		return
	}
	for _, p := range stuck {
		slog.Warn("post left in publishing by a previous run",
			"post_id", p.ID,
			"updated_at", p.UpdatedAt,
		)
	}
}

// Tick publishes every scheduled post that is due. A tick started while
// another one is still running returns immediately with Skipped set.
func (s *Scheduler) Tick(ctx context.Context) (report TickReport, err error) {
	if !s.running.TryLock() {
		slog.Debug("previous tick still running, skipping")
		s.countTick(ctx, "skipped")
		return TickReport{Skipped: true}, nil
	}
	defer s.running.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
			s.health.SetUnhealthy(ComponentScheduler, err)
		}
	}()

	due, err := s.store.ListDuePosts(ctx, s.now())
	if err != nil {
		s.health.SetUnhealthy(ComponentDatabase, err)
		s.countTick(ctx, "error")
		return report, fmt.Errorf("list due posts: %w", err)
	}
	s.health.SetHealthy(ComponentDatabase, "reachable")

	report.Due = len(due)
	if len(due) == 0 {
		s.health.SetHealthy(ComponentScheduler, "no posts due")
		s.countTick(ctx, "idle")
		return report, nil
	}

	for _, p := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		claimed, err := s.store.ClaimPost(ctx, p.ID, post.StatusScheduled)
		if err != nil {
			slog.Error("failed to claim post", "post_id", p.ID, "error", err)
			continue
		}
		if !claimed {
			slog.Debug("post claimed elsewhere", "post_id", p.ID)
			continue
		}
		report.Claimed++

		if err := s.publishOne(ctx, p.ID); err != nil {
			report.Failed++
			slog.Error("scheduled publish failed", "post_id", p.ID, "error", err)
			if ffErr := s.publisher.ForceFail(ctx, p.ID); ffErr != nil {
				slog.Error("failed to mark post failed", "post_id", p.ID, "error", ffErr)
			}
			continue
		}
		report.Published++
	}

	s.health.SetHealthy(ComponentScheduler, fmt.Sprintf("published %d of %d due posts", report.Published, report.Due))
	s.countTick(ctx, "ok")
	slog.Info("scheduler tick complete",
		"due", report.Due,
		"claimed", report.Claimed,
		"published", report.Published,
		"failed", report.Failed,
	)

	return report, nil
}

// publishOne turns a publisher panic into an error so one post cannot stop
// the tick.
func (s *Scheduler) publishOne(ctx context.Context, postID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publish panicked: %v", r)
		}
	}()
	return s.publisher.Publish(ctx, postID)
}

func (s *Scheduler) countTick(ctx context.Context, result string) {
	if s.tickCounter == nil {
		return
	}
	s.tickCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Health returns the health tracker.
func (s *Scheduler) Health() *Health {
	return s.health
}
