package study

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/srsbot/pkg/models"
)

// BatchRequest asks for the next cards to study. Nil optional fields take the
// configured defaults; Limit 0 means the default batch size.
type BatchRequest struct {
	LearnerID        int64
	DeckID           int64
	Limit            int
	NewRatio         *float64
	MaxNewPerDay     *int
	MaxReviewsPerDay *int
}

// BatchItem is one selected card.
type BatchItem struct {
	Card     models.Card      `json:"card"`
	Kind     ItemKind         `json:"kind"`
	Progress *models.Progress `json:"progress,omitempty"`
}

// Batch is an ordered selection, reviews first.
type Batch struct {
	ID            uuid.UUID    `json:"id"`
	DeckID        int64        `json:"deck_id"`
	Items         []BatchItem  `json:"items"`
	TargetReviews int          `json:"target_reviews"`
	TargetNew     int          `json:"target_new"`
	Status        *StudyStatus `json:"status"`
}

// Reviews returns the number of review items.
func (b *Batch) Reviews() int {
	n := 0
	for _, it := range b.Items {
		if it.Kind == KindReview {
			n++
		}
	}
	return n
}

// BuildNextBatch selects up to limit cards within the day's remaining quotas.
// Review slots left unused for lack of due cards are given to new cards.
// It does not write anything.
func (s *Service) BuildNextBatch(ctx context.Context, req BatchRequest, now time.Time) (*Batch, error) {
	limit, err := s.batchLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	ratio, err := optRatio(req.NewRatio, s.cfg.NewRatio, "new ratio")
	if err != nil {
		return nil, err
	}
	maxNew, err := optInt(req.MaxNewPerDay, s.cfg.MaxNewPerDay, "max new per day")
	if err != nil {
		return nil, err
	}
	maxReviews, err := optInt(req.MaxReviewsPerDay, s.cfg.MaxReviewsPerDay, "max reviews per day")
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Deck(ctx, req.LearnerID, req.DeckID); err != nil {
		return nil, err
	}

	today, err := s.ledger.Today(ctx, models.CounterKey{LearnerID: req.LearnerID, DeckID: req.DeckID, Day: s.cfg.Day(now)})
	if err != nil {
		return nil, errors.Wrap(err, "read today")
	}
	remainingReviews := max(0, maxReviews-today.ReviewsDone)
	remainingNew := max(0, maxNew-today.NewDone)

	targetNew := int(math.RoundToEven(float64(limit) * ratio))
	targetReviews := limit - targetNew
	targetReviews = min(targetReviews, remainingReviews)
	targetNew = min(limit-targetReviews, remainingNew)

	var reviews []Candidate
	if targetReviews > 0 {
		reviews, _, err = s.store.FetchDue(ctx, DueQuery{
			LearnerID: req.LearnerID,
			DeckID:    req.DeckID,
			Now:       now,
			Limit:     targetReviews,
			Order:     OrderByDue,
		})
		if err != nil {
			return nil, errors.Wrap(err, "fetch due")
		}
	}

	var fresh []Candidate
	if remaining := min(limit-len(reviews), remainingNew); remaining > 0 {
		fresh, _, err = s.store.FetchNew(ctx, NewQuery{
			LearnerID:  req.LearnerID,
			DeckID:     req.DeckID,
			Now:        now,
			ExcludeIDs: cardIDs(reviews),
			Limit:      remaining,
		})
		if err != nil {
			return nil, errors.Wrap(err, "fetch new")
		}
	}

	st, err := s.status(ctx, req.LearnerID, req.DeckID, Quotas{MaxNewPerDay: maxNew, MaxReviewsPerDay: maxReviews}, now)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ID:            uuid.New(),
		DeckID:        req.DeckID,
		Items:         make([]BatchItem, 0, len(reviews)+len(fresh)),
		TargetReviews: targetReviews,
		TargetNew:     targetNew,
		Status:        st,
	}
	for _, c := range reviews {
		b.Items = append(b.Items, BatchItem{Card: c.Card, Kind: KindReview, Progress: c.Progress})
	}
	for _, c := range fresh {
		b.Items = append(b.Items, BatchItem{Card: c.Card, Kind: KindNew, Progress: c.Progress})
	}

	s.log.Debug("built batch",
		"batch_id", b.ID,
		"learner_id", req.LearnerID,
		"deck_id", req.DeckID,
		"limit", limit,
		"target_reviews", targetReviews,
		"target_new", targetNew,
		"reviews", len(reviews),
		"new", len(fresh),
	)
	return b, nil
}
