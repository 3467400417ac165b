package study

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

const (
	learnerID  int64 = 1
	outsiderID int64 = 2
	deckID     int64 = 10
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func newFixture(t *testing.T) (*memStore, *Service) {
	t.Helper()
	m := newMemStore()
	m.addLearner(models.Learner{
		ID:               learnerID,
		DailyCardTarget:  models.DefaultDailyCardTarget,
		DailyNewTarget:   models.DefaultDailyNewTarget,
		MaxNewPerDay:     models.DefaultMaxNewPerDay,
		MaxReviewsPerDay: models.DefaultMaxReviewsPerDay,
	})
	m.addLearner(models.Learner{ID: outsiderID})
	m.addDeck(models.Deck{ID: deckID, OwnerID: learnerID, Name: "spanish", Policy: "ladder"}, learnerID)
	return m, NewService(m, m, m, nil, DefaultConfig(), nil)
}

// addDue creates n learning cards, the first one the most overdue.
func addDue(m *memStore, n int) []int64 {
	ids := m.addCards(deckID, n)
	for i, id := range ids {
		m.learning(learnerID, id, 2, now.Add(-time.Duration(n-i)*time.Minute))
	}
	return ids
}

func kinds(b *Batch) (reviews, fresh int) {
	for _, it := range b.Items {
		if it.Kind == KindReview {
			reviews++
		} else {
			fresh++
		}
	}
	return
}

func TestBuildNextBatchReallocatesReviewShortfall(t *testing.T) {
	m, svc := newFixture(t)
	due := addDue(m, 3)
	m.addCards(deckID, 20)

	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{
		LearnerID: learnerID, DeckID: deckID, Limit: 10, NewRatio: floatPtr(0.3),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 7, b.TargetReviews)
	assert.Equal(t, 3, b.TargetNew)
	require.Len(t, b.Items, 10)
	for i, id := range due {
		assert.Equal(t, KindReview, b.Items[i].Kind)
		assert.Equal(t, id, b.Items[i].Card.ID)
	}
	for _, it := range b.Items[3:] {
		assert.Equal(t, KindNew, it.Kind)
	}
	assert.Equal(t, 3, b.Reviews())
	assert.NotEqual(t, uuid.Nil, b.ID)
}

func TestBuildNextBatchExhaustedReviewQuota(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 3)
	m.addCards(deckID, 12)
	m.counters[models.CounterKey{LearnerID: learnerID, DeckID: deckID, Day: "2024-03-10"}] = &models.DailyCounter{
		LearnerID: learnerID, DeckID: deckID, Day: "2024-03-10", ItemsDone: 100, ReviewsDone: 100,
	}

	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{
		LearnerID: learnerID, DeckID: deckID, Limit: 10, NewRatio: floatPtr(0.3),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 0, b.TargetReviews)
	assert.Equal(t, 10, b.TargetNew)
	reviews, fresh := kinds(b)
	assert.Equal(t, 0, reviews)
	assert.Equal(t, 10, fresh)
	assert.Equal(t, 0, b.Status.RemainingReviewQuota)
	assert.Equal(t, 3, b.Status.DueCount)
}

func TestBuildNextBatchRoundsHalfToEven(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 10)
	m.addCards(deckID, 10)

	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{
		LearnerID: learnerID, DeckID: deckID, Limit: 5, NewRatio: floatPtr(0.5),
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, b.TargetNew)
	assert.Equal(t, 3, b.TargetReviews)
	reviews, fresh := kinds(b)
	assert.Equal(t, 3, reviews)
	assert.Equal(t, 2, fresh)
}

func TestBuildNextBatchRespectsQuotas(t *testing.T) {
	for _, limit := range []int{1, 3, 7, 10, 20} {
		for _, ratio := range []float64{0, 0.3, 0.5, 1} {
			for _, dueCards := range []int{0, 2, 15} {
				for _, quota := range [][2]int{{0, 0}, {1, 2}, {3, 0}, {10, 100}} {
					m, svc := newFixture(t)
					addDue(m, dueCards)
					m.addCards(deckID, 8)

					b, err := svc.BuildNextBatch(context.Background(), BatchRequest{
						LearnerID:        learnerID,
						DeckID:           deckID,
						Limit:            limit,
						NewRatio:         floatPtr(ratio),
						MaxNewPerDay:     intPtr(quota[0]),
						MaxReviewsPerDay: intPtr(quota[1]),
					}, now)
					require.NoError(t, err)

					reviews, fresh := kinds(b)
					assert.LessOrEqual(t, len(b.Items), limit)
					assert.LessOrEqual(t, len(b.Items), quota[0]+quota[1])
					assert.LessOrEqual(t, reviews, quota[1])
					assert.LessOrEqual(t, fresh, quota[0])

					// Review slots left empty go to new cards.
					wantNew := min(limit-reviews, quota[0], 8)
					assert.Equal(t, wantNew, fresh, "limit=%d ratio=%v due=%d quota=%v", limit, ratio, dueCards, quota)
				}
			}
		}
	}
}

func TestBuildNextBatchLimits(t *testing.T) {
	m, svc := newFixture(t)
	m.addCards(deckID, 40)

	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{
		LearnerID: learnerID, DeckID: deckID, MaxNewPerDay: intPtr(100),
	}, now)
	require.NoError(t, err)
	assert.Len(t, b.Items, 20)

	b, err = svc.BuildNextBatch(context.Background(), BatchRequest{
		LearnerID: learnerID, DeckID: deckID, Limit: 500, MaxNewPerDay: intPtr(100),
	}, now)
	require.NoError(t, err)
	assert.Len(t, b.Items, 20)
}

func TestBuildNextBatchRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  BatchRequest
	}{
		{"negative limit", BatchRequest{Limit: -1}},
		{"ratio above one", BatchRequest{NewRatio: floatPtr(1.5)}},
		{"negative ratio", BatchRequest{NewRatio: floatPtr(-0.1)}},
		{"nan ratio", BatchRequest{NewRatio: floatPtr(math.NaN())}},
		{"negative new quota", BatchRequest{MaxNewPerDay: intPtr(-1)}},
		{"negative review quota", BatchRequest{MaxReviewsPerDay: intPtr(-3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, svc := newFixture(t)
			tt.req.LearnerID, tt.req.DeckID = learnerID, deckID
			_, err := svc.BuildNextBatch(context.Background(), tt.req, now)
			require.Error(t, err)
			assert.True(t, apperr.IsInvalid(err))
			assert.Zero(t, m.calls, "store must not be touched")
		})
	}
}

func TestBuildNextBatchDeckAccess(t *testing.T) {
	m, svc := newFixture(t)
	m.addCards(deckID, 5)

	_, err := svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: outsiderID, DeckID: deckID}, now)
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: learnerID, DeckID: 999}, now)
	assert.True(t, apperr.IsNotFound(err))
}

func TestBuildNextBatchEmptyDeck(t *testing.T) {
	_, svc := newFixture(t)
	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: learnerID, DeckID: deckID}, now)
	require.NoError(t, err)
	assert.Empty(t, b.Items)
	assert.Nil(t, b.Status.NextDueAt)
}

func TestBuildNextBatchIsReadOnly(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 4)
	m.addCards(deckID, 4)
	before := len(m.progress)

	_, err := svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: learnerID, DeckID: deckID}, now)
	require.NoError(t, err)
	assert.Len(t, m.progress, before)
	assert.Empty(t, m.counters)
}

func TestBuildNextBatchNewPoolIncludesRetriedNewCards(t *testing.T) {
	m, svc := newFixture(t)
	ids := m.addCards(deckID, 3)
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: ids[0], Status: models.StatusNew,
		DueAt: sqlTime(now.Add(-time.Second)), TimesSeen: 1})
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: ids[1], Status: models.StatusNew,
		DueAt: sqlTime(now.Add(time.Minute)), TimesSeen: 1})

	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: learnerID, DeckID: deckID}, now)
	require.NoError(t, err)
	require.Len(t, b.Items, 2)
	assert.Equal(t, ids[0], b.Items[0].Card.ID)
	assert.NotNil(t, b.Items[0].Progress)
	assert.Equal(t, ids[2], b.Items[1].Card.ID)
	assert.Nil(t, b.Items[1].Progress)
}
