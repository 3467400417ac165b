package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

const (
	// DefaultStreakThreshold is the number of answers a day needs to count
	// towards a streak.
	DefaultStreakThreshold = 10

	maxStreakThreshold = 1000
	maxRangeDays       = 366
	firstDay           = "0001-01-01"
)

// Store is the data the history views read.
type Store interface {
	Learner(ctx context.Context, id int64) (*models.Learner, error)
	Totals(ctx context.Context, learnerID int64, from, to string) ([]models.DayTotals, error)
	CountStatuses(ctx context.Context, learnerID, deckID int64) (models.StatusCounts, error)
}

// StatusReader builds the queue snapshot of a deck.
type StatusReader interface {
	BuildStudyStatus(ctx context.Context, learnerID, deckID int64, quotas *study.Quotas, now time.Time) (*study.StudyStatus, error)
}

// Service answers history questions over the daily ledger.
type Service struct {
	store  Store
	status StatusReader
	loc    *time.Location
	log    *logger.Logger
}

// NewService creates the service. Days are calendar days in loc.
func NewService(store Store, status StatusReader, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, status: status, loc: loc, log: log}
}

// Day returns the ledger day of t.
func (s *Service) Day(t time.Time) string {
	return t.In(s.loc).Format(models.DayLayout)
}

// Streak is a run of consecutive qualifying days.
type Streak struct {
	Current   int  `json:"current"`
	Best      int  `json:"best"`
	Threshold int  `json:"threshold"`
	TodayDone bool `json:"today_done"`
}

// Goal is today's progress towards the learner's daily card target.
type Goal struct {
	Day       string `json:"day"`
	Target    int    `json:"target"`
	Done      int    `json:"done"`
	Remaining int    `json:"remaining"`
	Completed bool   `json:"completed"`
}

// Summary combines today's counters with a deck's queue.
type Summary struct {
	Day    string               `json:"day"`
	Today  models.DayTotals     `json:"today"`
	Goal   Goal                 `json:"goal"`
	Streak Streak               `json:"streak"`
	Counts *models.StatusCounts `json:"counts,omitempty"`
	Queue  *study.StudyStatus   `json:"queue,omitempty"`
}

// Range returns one entry per day in [from, to], summed over decks. Days
// without answers are zero.
func (s *Service) Range(ctx context.Context, learnerID int64, from, to string) ([]models.DayTotals, error) {
	start, err := time.Parse(models.DayLayout, from)
	if err != nil {
		return nil, apperr.Invalid("invalid from date %q", from)
	}
	end, err := time.Parse(models.DayLayout, to)
	if err != nil {
		return nil, apperr.Invalid("invalid to date %q", to)
	}
	if start.After(end) {
		return nil, apperr.Invalid("from date %s is after to date %s", from, to)
	}
	if end.Sub(start) >= maxRangeDays*24*time.Hour {
		return nil, apperr.Invalid("range %s..%s is longer than %d days", from, to, maxRangeDays)
	}

	rows, err := s.store.Totals(ctx, learnerID, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]models.DayTotals, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r
	}

	var out []models.DayTotals
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(models.DayLayout)
		row, ok := byDay[day]
		if !ok {
			row = models.DayTotals{Day: day}
		}
		out = append(out, row)
	}
	return out, nil
}

// Month returns the zero-filled range of a calendar month.
func (s *Service) Month(ctx context.Context, learnerID int64, year, month int) ([]models.DayTotals, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Invalid("month must be 1..12, got %d", month)
	}
	if year < 2000 || year > 2100 {
		return nil, apperr.Invalid("year must be 2000..2100, got %d", year)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return s.Range(ctx, learnerID, first.Format(models.DayLayout), last.Format(models.DayLayout))
}

// Streak computes the current and best runs of days with at least threshold
// answers. Today extends the current streak once it qualifies; until then the
// streak ending yesterday is still current. threshold 0 means the default.
func (s *Service) Streak(ctx context.Context, learnerID int64, threshold int, now time.Time) (*Streak, error) {
	if threshold == 0 {
		threshold = DefaultStreakThreshold
	}
	if threshold < 1 || threshold > maxStreakThreshold {
		return nil, apperr.Invalid("streak threshold must be 1..%d, got %d", maxStreakThreshold, threshold)
	}
	today := s.Day(now)
	rows, err := s.store.Totals(ctx, learnerID, firstDay, today)
	if err != nil {
		return nil, err
	}
	return streakOf(rows, threshold, today), nil
}

func streakOf(rows []models.DayTotals, threshold int, today string) *Streak {
	st := &Streak{Threshold: threshold}
	qualified := make(map[string]bool)

	run := 0
	var prev time.Time
	for _, r := range rows {
		if r.ItemsDone < threshold {
			run = 0
			continue
		}
		d, err := time.Parse(models.DayLayout, r.Day)
		if err != nil {
			continue
		}
		qualified[r.Day] = true
		if run > 0 && prev.AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		prev = d
		st.Best = max(st.Best, run)
	}

	d, err := time.Parse(models.DayLayout, today)
	if err != nil {
		return st
	}
	st.TodayDone = qualified[today]
	if !st.TodayDone {
		d = d.AddDate(0, 0, -1)
	}
	for qualified[d.Format(models.DayLayout)] {
		st.Current++
		d = d.AddDate(0, 0, -1)
	}
	return st
}

// TodayGoal compares today's answers over all decks with the learner's
// daily card target.
func (s *Service) TodayGoal(ctx context.Context, learnerID int64, now time.Time) (*Goal, error) {
	learner, err := s.store.Learner(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	today, err := s.today(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}
	return goalOf(learner.DailyCardTarget, today), nil
}

func goalOf(target int, today models.DayTotals) *Goal {
	return &Goal{
		Day:       today.Day,
		Target:    target,
		Done:      today.ItemsDone,
		Remaining: max(0, target-today.ItemsDone),
		Completed: today.ItemsDone >= target,
	}
}

func (s *Service) today(ctx context.Context, learnerID int64, now time.Time) (models.DayTotals, error) {
	day := s.Day(now)
	rows, err := s.store.Totals(ctx, learnerID, day, day)
	if err != nil {
		return models.DayTotals{}, err
	}
	if len(rows) == 0 {
		return models.DayTotals{Day: day}, nil
	}
	return rows[0], nil
}

// Summary reads today's counters, the goal and the streak. With a deckID it
// adds the deck's status counts and its queue under the learner's quotas;
// deckID 0 skips them.
func (s *Service) Summary(ctx context.Context, learnerID, deckID int64, threshold int, now time.Time) (*Summary, error) {
	learner, err := s.store.Learner(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Day: s.Day(now)}
	var streak *Streak
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum.Today, err = s.today(gctx, learnerID, now)
		return errors.Wrap(err, "read today")
	})
	g.Go(func() error {
		var err error
		streak, err = s.Streak(gctx, learnerID, threshold, now)
		return err
	})
	if deckID != 0 {
		g.Go(func() error {
			quotas := &study.Quotas{MaxNewPerDay: learner.MaxNewPerDay, MaxReviewsPerDay: learner.MaxReviewsPerDay}
			var err error
			sum.Queue, err = s.status.BuildStudyStatus(gctx, learnerID, deckID, quotas, now)
			if err != nil {
				return err
			}
			counts, err := s.store.CountStatuses(gctx, learnerID, deckID)
			if err != nil {
				return err
			}
			sum.Counts = &counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.Streak = *streak
	sum.Goal = *goalOf(learner.DailyCardTarget, sum.Today)
	s.log.Debug("Built progress summary", "learner_id", learnerID, "deck_id", deckID, "done", sum.Today.ItemsDone, "streak", streak.Current)
	return sum, nil
}
