package study

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

func TestBuildTodayPlanNormalMode(t *testing.T) {
	m, svc := newFixture(t)
	due := addDue(m, 3)
	m.addCards(deckID, 30)

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID}, now)
	require.NoError(t, err)

	// capacity 20: 14 review slots and min(7, 6) new; 3 due, 11 slots donated.
	assert.False(t, plan.BacklogProtectionActive)
	assert.Empty(t, plan.Message)
	assert.Equal(t, 3, plan.BacklogDueCount)
	assert.Equal(t, due, plan.ReviewCardIDs)
	assert.Equal(t, 3, plan.PlannedReviews)
	assert.Equal(t, 17, plan.PlannedNew)
	assert.Len(t, plan.NewCardIDs, 17)
}

func TestBuildTodayPlanNewCapacity(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 20)
	m.addCards(deckID, 30)

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{
		LearnerID: learnerID, DeckID: deckID, Capacity: intPtr(10), NewTarget: intPtr(5),
	}, now)
	require.NoError(t, err)
	// floor(10*0.7) = 7 reviews, min(5, 3) = 3 new.
	assert.Equal(t, 7, plan.PlannedReviews)
	assert.Equal(t, 3, plan.PlannedNew)
}

func TestBuildTodayPlanSurvivalMode(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 8)
	m.addCards(deckID, 30)

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{
		LearnerID: learnerID, DeckID: deckID, Threshold: intPtr(8),
	}, now)
	require.NoError(t, err)

	assert.True(t, plan.BacklogProtectionActive)
	assert.Equal(t, 8, plan.BacklogDueCount)
	assert.Contains(t, plan.Message, "8 reviews waiting")
	assert.Equal(t, 8, plan.PlannedReviews)
	assert.Zero(t, plan.PlannedNew)
	assert.Empty(t, plan.NewCardIDs)
}

func TestBuildTodayPlanSurvivalUsesWholeCapacity(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 40)
	m.addCards(deckID, 5)

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{
		LearnerID: learnerID, DeckID: deckID, Threshold: intPtr(30),
	}, now)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDailyCardTarget, plan.PlannedReviews)
	assert.Zero(t, plan.PlannedNew)
}

func TestBuildTodayPlanDoesNotOverReport(t *testing.T) {
	m, svc := newFixture(t)
	m.addCards(deckID, 4)

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.PlannedReviews)
	assert.Equal(t, 4, plan.PlannedNew)
	assert.Equal(t, len(plan.NewCardIDs), plan.PlannedNew)
	assert.Equal(t, len(plan.ReviewCardIDs), plan.PlannedReviews)
}

func TestBuildTodayPlanOrders(t *testing.T) {
	m, svc := newFixture(t)
	ids := m.addCards(deckID, 3)
	// ids[0] most overdue but strong, ids[2] least overdue and weakest.
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: ids[0], Status: models.StatusLearning,
		DueAt: sqlTime(now.Add(-3 * time.Hour)), TimesSeen: 4, TimesCorrect: 4})
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: ids[1], Status: models.StatusLearning,
		DueAt: sqlTime(now.Add(-2 * time.Hour)), TimesSeen: 4, TimesCorrect: 2})
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: ids[2], Status: models.StatusLearning,
		DueAt: sqlTime(now.Add(-time.Hour)), TimesSeen: 4, TimesCorrect: 1})

	plan, err := svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID, Order: OrderByDue}, now)
	require.NoError(t, err)
	assert.Equal(t, ids, plan.ReviewCardIDs)

	plan, err = svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID, Order: OrderByWeakness}, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, plan.ReviewCardIDs)
}

func TestBuildTodayPlanValidation(t *testing.T) {
	m, svc := newFixture(t)
	_, err := svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID, Capacity: intPtr(-1)}, now)
	assert.True(t, apperr.IsInvalid(err))
	_, err = svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: learnerID, DeckID: deckID, Threshold: intPtr(-5)}, now)
	assert.True(t, apperr.IsInvalid(err))
	assert.Zero(t, m.calls)

	_, err = svc.BuildTodayPlan(context.Background(), PlanRequest{LearnerID: outsiderID, DeckID: deckID}, now)
	assert.True(t, apperr.IsNotFound(err))
}

func TestParseOrder(t *testing.T) {
	o, ok := ParseOrder("weakness")
	assert.True(t, ok)
	assert.Equal(t, OrderByWeakness, o)
	assert.Equal(t, "weakness", o.String())

	o, ok = ParseOrder("")
	assert.True(t, ok)
	assert.Equal(t, OrderByDue, o)

	_, ok = ParseOrder("random")
	assert.False(t, ok)
}
