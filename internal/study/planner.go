package study

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PlanRequest asks for today's plan. Nil optional fields come from the
// learner's settings (capacity, new target) or the configuration (threshold).
type PlanRequest struct {
	LearnerID int64
	DeckID    int64
	Capacity  *int
	NewTarget *int
	Threshold *int
	Order     Order
}

// Plan is the whole-day selection. Planned counts equal the lengths of the id lists.
type Plan struct {
	ID                      uuid.UUID `json:"id"`
	PlannedReviews          int       `json:"planned_reviews"`
	PlannedNew              int       `json:"planned_new"`
	ReviewCardIDs           []int64   `json:"review_card_ids"`
	NewCardIDs              []int64   `json:"new_card_ids"`
	Message                 string    `json:"message,omitempty"`
	BacklogDueCount         int       `json:"backlog_due_count"`
	BacklogProtectionActive bool      `json:"backlog_protection_active"`
}

// BuildTodayPlan splits the learner's daily capacity between reviews and new
// cards. When the due backlog reaches the threshold new cards are paused.
func (s *Service) BuildTodayPlan(ctx context.Context, req PlanRequest, now time.Time) (*Plan, error) {
	if _, err := optInt(req.Capacity, 0, "capacity"); err != nil {
		return nil, err
	}
	if _, err := optInt(req.NewTarget, 0, "new target"); err != nil {
		return nil, err
	}
	threshold, err := optInt(req.Threshold, s.cfg.BacklogThreshold, "threshold")
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Deck(ctx, req.LearnerID, req.DeckID); err != nil {
		return nil, err
	}
	learner, err := s.store.Learner(ctx, req.LearnerID)
	if err != nil {
		return nil, err
	}
	capacity, _ := optInt(req.Capacity, max(0, learner.DailyCardTarget), "capacity")
	newTarget, _ := optInt(req.NewTarget, max(0, learner.DailyNewTarget), "new target")

	_, dueCount, err := s.store.FetchDue(ctx, DueQuery{LearnerID: req.LearnerID, DeckID: req.DeckID, Now: now})
	if err != nil {
		return nil, errors.Wrap(err, "count due")
	}

	plan := &Plan{ID: uuid.New(), BacklogDueCount: dueCount, ReviewCardIDs: []int64{}, NewCardIDs: []int64{}}
	var plannedReviews, plannedNew int
	if dueCount >= threshold {
		plan.BacklogProtectionActive = true
		plannedReviews = int(math.Floor(float64(capacity) * s.cfg.SurvivalReviewShare))
		plan.Message = fmt.Sprintf("You have %d reviews waiting. New cards paused until backlog is reduced.", dueCount)
	} else {
		plannedReviews = int(math.Floor(float64(capacity) * s.cfg.ReviewShare))
		plannedNew = min(newTarget, capacity-plannedReviews)
	}

	var reviews []Candidate
	if plannedReviews > 0 {
		reviews, _, err = s.store.FetchDue(ctx, DueQuery{
			LearnerID: req.LearnerID,
			DeckID:    req.DeckID,
			Now:       now,
			Limit:     plannedReviews,
			Order:     req.Order,
		})
		if err != nil {
			return nil, errors.Wrap(err, "fetch due")
		}
	}
	plan.ReviewCardIDs = append(plan.ReviewCardIDs, cardIDs(reviews)...)

	// New cards stay paused in survival mode even when the backlog is smaller
	// than the capacity.
	if shortfall := plannedReviews - len(reviews); shortfall > 0 && !plan.BacklogProtectionActive {
		plannedNew += shortfall
	}

	if plannedNew > 0 {
		fresh, _, err := s.store.FetchNew(ctx, NewQuery{
			LearnerID:  req.LearnerID,
			DeckID:     req.DeckID,
			Now:        now,
			ExcludeIDs: plan.ReviewCardIDs,
			Limit:      plannedNew,
		})
		if err != nil {
			return nil, errors.Wrap(err, "fetch new")
		}
		plan.NewCardIDs = append(plan.NewCardIDs, cardIDs(fresh)...)
	}

	plan.PlannedReviews = len(plan.ReviewCardIDs)
	plan.PlannedNew = len(plan.NewCardIDs)

	s.log.Debug("built plan",
		"plan_id", plan.ID,
		"learner_id", req.LearnerID,
		"deck_id", req.DeckID,
		"order", req.Order.String(),
		"due", dueCount,
		"survival", plan.BacklogProtectionActive,
		"reviews", plan.PlannedReviews,
		"new", plan.PlannedNew,
	)
	return plan, nil
}
