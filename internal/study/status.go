package study

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

// Quotas are the daily caps a status is computed against.
type Quotas struct {
	MaxNewPerDay     int
	MaxReviewsPerDay int
}

// StudyStatus is a read-only snapshot of a learner's queue in one deck.
type StudyStatus struct {
	DueCount             int        `json:"due_count"`
	NewAvailable         int        `json:"new_available"`
	ReviewedToday        int        `json:"reviewed_today"`
	NewToday             int        `json:"new_today"`
	RemainingReviewQuota int        `json:"remaining_review_quota"`
	RemainingNewQuota    int        `json:"remaining_new_quota"`
	NextDueAt            *time.Time `json:"next_due_at"`
}

// BuildStudyStatus reads the queue counters of a deck. Nil quotas mean the
// configured defaults.
func (s *Service) BuildStudyStatus(ctx context.Context, learnerID, deckID int64, quotas *Quotas, now time.Time) (*StudyStatus, error) {
	q := Quotas{MaxNewPerDay: s.cfg.MaxNewPerDay, MaxReviewsPerDay: s.cfg.MaxReviewsPerDay}
	if quotas != nil {
		if quotas.MaxNewPerDay < 0 || quotas.MaxReviewsPerDay < 0 {
			return nil, apperr.Invalid("quotas must not be negative, got %+v", *quotas)
		}
		q = *quotas
	}
	if _, err := s.store.Deck(ctx, learnerID, deckID); err != nil {
		return nil, err
	}
	return s.status(ctx, learnerID, deckID, q, now)
}

func (s *Service) status(ctx context.Context, learnerID, deckID int64, q Quotas, now time.Time) (*StudyStatus, error) {
	var (
		st      StudyStatus
		counter models.DailyCounter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, n, err := s.store.FetchDue(gctx, DueQuery{LearnerID: learnerID, DeckID: deckID, Now: now})
		st.DueCount = n
		return errors.Wrap(err, "count due")
	})
	g.Go(func() error {
		_, n, err := s.store.FetchNew(gctx, NewQuery{LearnerID: learnerID, DeckID: deckID, Now: now})
		st.NewAvailable = n
		return errors.Wrap(err, "count new")
	})
	g.Go(func() error {
		var err error
		counter, err = s.ledger.Today(gctx, models.CounterKey{LearnerID: learnerID, DeckID: deckID, Day: s.cfg.Day(now)})
		return errors.Wrap(err, "read today")
	})
	g.Go(func() error {
		var err error
		st.NextDueAt, err = s.store.NextDueAt(gctx, learnerID, deckID)
		return errors.Wrap(err, "next due")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.ReviewedToday = counter.ReviewsDone
	st.NewToday = counter.NewDone
	st.RemainingReviewQuota = max(0, q.MaxReviewsPerDay-counter.ReviewsDone)
	st.RemainingNewQuota = max(0, q.MaxNewPerDay-counter.NewDone)
	return &st, nil
}
