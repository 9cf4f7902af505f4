package suspension

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/events"
	"github.com/convflow/convflow/pkg/persistence"
)

const (
	// DefaultSweepSchedule runs the expiry sweep every minute.
	DefaultSweepSchedule = "* * * * *"

	// DefaultRetention keeps terminal records for a week before purge.
	DefaultRetention = 7 * 24 * time.Hour
)

// Sweeper expires overdue pending suspensions and purges old terminal
// records on a cron schedule. Both passes are idempotent, so overlapping
// sweepers (multiple replicas) are harmless.
type Sweeper struct {
	logger    *slog.Logger
	repo      persistence.PausedStateRepository
	publisher eventbus.EventPublisher
	schedule  string
	retention time.Duration
	cron      *cron.Cron
}

// NewSweeper creates a sweeper. Empty schedule and non-positive retention
// fall back to the defaults.
func NewSweeper(logger *slog.Logger, repo persistence.PausedStateRepository, publisher eventbus.EventPublisher, schedule string, retention time.Duration) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Sweeper{
		logger:    logger.With("module", "sweeper"),
		repo:      repo,
		publisher: publisher,
		schedule:  schedule,
		retention: retention,
	}
}

// Start schedules the sweep. The returned error only covers schedule
// parsing; sweep failures are logged and retried on the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Suspension sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule suspension sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Suspension sweeper started",
		"schedule", s.schedule, "retention", s.retention)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one expire-and-purge pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now().UTC()

	expired, err := s.repo.MarkExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to expire pending states: %w", err)
	}

	purged, err := s.repo.DeleteTerminalBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return fmt.Errorf("failed to purge terminal states: %w", err)
	}

	if expired == 0 && purged == 0 {
		return nil
	}

	s.logger.InfoContext(ctx, "Suspension sweep completed",
		"expired", expired, "purged", purged)

	if s.publisher != nil {
		event := events.PausedStateExpired{
			BaseEvent: events.BaseEvent{
				Type:      events.PausedStateExpiredEvent,
				Timestamp: now,
			},
			ExpiredCount: expired,
			PurgedCount:  purged,
		}

		if err := s.publisher.Publish(ctx, "sweep", event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish sweep event", "error", err)
		}
	}

	return nil
}
