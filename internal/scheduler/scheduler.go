package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/pkg/models"
)

// Default notification window, in hours of the configured timezone.
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
)

// Notifier sends a reminder about due cards.
type Notifier interface {
	SendReminder(ctx context.Context, learner models.Learner, due int) error
}

// Store is what the reminder job reads.
type Store interface {
	Learner(ctx context.Context, id int64) (*models.Learner, error)
	LearnersToNotify(ctx context.Context, hour int) ([]models.Learner, error)
	CountDue(ctx context.Context, learnerID int64, now time.Time) (int, error)
}

// Config sets the window and pace of reminders.
type Config struct {
	StartHour     int
	EndHour       int
	Location      *time.Location
	RatePerSecond float64 // <= 0 means unlimited
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	cron     *gocron.Scheduler
	store    Store
	notifier Notifier
	cfg      Config
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New creates a new scheduler instance
func New(store Store, notifier Notifier, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(cfg.Location),
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// Start schedules the hourly reminder check from the next full hour and runs
// the scheduler in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	next := time.Now().In(s.cfg.Location).Truncate(time.Hour).Add(time.Hour)
	_, err := s.cron.Every(1).Hour().StartAt(next).Do(func() {
		if _, err := s.RunOnce(ctx, time.Now()); err != nil {
			s.log.Error("Reminder check failed", "error", err)
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to schedule reminders")
	}
	s.cron.StartAsync()
	s.log.Info("Scheduler started", "first_run", next, "window_start", s.cfg.StartHour, "window_end", s.cfg.EndHour)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce notifies the learners whose reminder hour is the hour of now and
// who have due cards. The count is capped by the learner's daily target.
// It returns the number of reminders sent; failures for one learner are
// logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	hour := now.In(s.cfg.Location).Hour()
	if hour < s.cfg.StartHour || hour > s.cfg.EndHour {
		s.log.Debug("Outside notification hours, skipping reminders", "hour", hour,
			"window_start", s.cfg.StartHour, "window_end", s.cfg.EndHour)
		return 0, nil
	}

	learners, err := s.store.LearnersToNotify(ctx, hour)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, l := range learners {
		due, err := s.store.CountDue(ctx, l.ID, now)
		if err != nil {
			s.log.Warn("Failed to count due cards", "learner_id", l.ID, "error", err)
			continue
		}
		if due == 0 {
			continue
		}
		if l.DailyCardTarget > 0 {
			due = min(due, l.DailyCardTarget)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return sent, errors.Wrap(err, "reminders interrupted")
		}
		if err := s.notifier.SendReminder(ctx, l, due); err != nil {
			s.log.Warn("Failed to send reminder", "learner_id", l.ID, "error", err)
			continue
		}
		sent++
	}
	s.log.Info("Reminders sent", "hour", hour, "candidates", len(learners), "sent", sent)
	return sent, nil
}

// RunManualCheck reminds one learner about all due cards, ignoring the
// window. It reports whether a reminder was sent.
func (s *Scheduler) RunManualCheck(ctx context.Context, learnerID int64, now time.Time) (bool, error) {
	l, err := s.store.Learner(ctx, learnerID)
	if err != nil {
		return false, err
	}
	due, err := s.store.CountDue(ctx, learnerID, now)
	if err != nil {
		return false, err
	}
	if due == 0 {
		return false, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if err := s.notifier.SendReminder(ctx, *l, due); err != nil {
		return false, err
	}
	return true, nil
}
