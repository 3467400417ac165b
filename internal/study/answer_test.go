package study

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/srsbot/internal/apperr"
	sr "github.com/example/srsbot/internal/spaced_repetition"
	"github.com/example/srsbot/pkg/models"
)

func answer(t *testing.T, svc *Service, cardID int64, learned bool, at time.Time) *AnswerResult {
	t.Helper()
	res, err := svc.ApplyAnswer(context.Background(), Answer{LearnerID: learnerID, CardID: cardID, Learned: learned}, at)
	require.NoError(t, err)
	return res
}

func TestApplyAnswerFirstAndSecond(t *testing.T) {
	m, svc := newFixture(t)
	id := m.addCards(deckID, 1)[0]

	res := answer(t, svc, id, true, now)
	assert.Equal(t, KindNew, res.Kind)
	assert.Equal(t, "2024-03-10", res.Day)
	p := res.Progress
	assert.Equal(t, models.StatusLearning, p.Status)
	assert.Equal(t, int64(1), p.Stage.Int64)
	assert.Equal(t, now.Add(45*time.Second), p.DueAt.Time)
	assert.Equal(t, now, p.LastReviewedAt.Time)
	assert.Equal(t, 1, p.TimesSeen)
	assert.Equal(t, 1, p.TimesCorrect)
	assert.Equal(t, sr.PolicyLadder, p.Policy)

	res = answer(t, svc, id, false, now.Add(time.Minute))
	assert.Equal(t, KindReview, res.Kind)
	assert.Equal(t, 2, res.Progress.TimesSeen)
	assert.Equal(t, 1, res.Progress.TimesCorrect)

	row := m.counters[models.CounterKey{LearnerID: learnerID, DeckID: deckID, Day: "2024-03-10"}]
	require.NotNil(t, row)
	assert.Equal(t, 2, row.ItemsDone)
	assert.Equal(t, 1, row.NewDone)
	assert.Equal(t, 1, row.ReviewsDone)
}

func TestApplyAnswerFailedNewCardStaysNew(t *testing.T) {
	m, svc := newFixture(t)
	id := m.addCards(deckID, 1)[0]

	p := answer(t, svc, id, false, now).Progress
	assert.Equal(t, models.StatusNew, p.Status)
	assert.False(t, p.Stage.Valid)
	assert.Equal(t, now.Add(45*time.Second), p.DueAt.Time)

	// Retried new cards come back in the new pool once due.
	b, err := svc.BuildNextBatch(context.Background(), BatchRequest{LearnerID: learnerID, DeckID: deckID}, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, b.Items, 1)
	assert.Equal(t, KindNew, b.Items[0].Kind)
}

func TestApplyAnswerLadderScenarios(t *testing.T) {
	m, svc := newFixture(t)
	ids := m.addCards(deckID, 2)

	at := now
	var res *AnswerResult
	for i := 0; i < 5; i++ {
		res = answer(t, svc, ids[0], true, at)
		at = at.Add(time.Duration(i*7+1) * time.Hour)
	}
	assert.Equal(t, models.StatusLearning, res.Progress.Status)
	assert.Equal(t, int64(5), res.Progress.Stage.Int64)

	res = answer(t, svc, ids[0], true, at)
	assert.Equal(t, models.StatusMastered, res.Progress.Status)
	assert.Equal(t, int64(5), res.Progress.Stage.Int64)
	assert.False(t, res.Progress.DueAt.Valid)

	res = answer(t, svc, ids[0], false, at)
	assert.Equal(t, models.StatusMastered, res.Progress.Status)
	assert.False(t, res.Progress.DueAt.Valid)

	for _, learned := range []bool{true, true, false, true} {
		res = answer(t, svc, ids[1], learned, now)
	}
	assert.Equal(t, models.StatusLearning, res.Progress.Status)
	assert.Equal(t, int64(2), res.Progress.Stage.Int64)
}

func TestApplyAnswerPinsPolicy(t *testing.T) {
	m, _ := newFixture(t)
	m.addDeck(models.Deck{ID: 20, OwnerID: learnerID, Name: "kanji", Policy: sr.PolicySM2}, learnerID)
	id := m.addCards(20, 1)[0]

	reg := sr.NewRegistry(sr.NewLadderPolicy(sr.DefaultLadder()), sr.NewSM2(nil))
	svc := NewService(m, m, m, reg, DefaultConfig(), nil)

	p := answer(t, svc, id, true, now).Progress
	assert.Equal(t, sr.PolicySM2, p.Policy)
	assert.Equal(t, 1, p.IntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 1), p.DueAt.Time)

	m.decks[20] = models.Deck{ID: 20, OwnerID: learnerID, Name: "kanji", Policy: sr.PolicyLadder}
	p = answer(t, svc, id, true, now.AddDate(0, 0, 1)).Progress
	assert.Equal(t, sr.PolicySM2, p.Policy)
	assert.Equal(t, 6, p.IntervalDays)
}

func TestApplyAnswerDeckWithoutPolicyUsesDefault(t *testing.T) {
	m, _ := newFixture(t)
	m.addDeck(models.Deck{ID: 21, OwnerID: learnerID, Name: "verbs"}, learnerID)
	id := m.addCards(21, 1)[0]

	reg := sr.NewRegistry(sr.NewSM2(nil), sr.NewLadderPolicy(sr.DefaultLadder()))
	svc := NewService(m, m, m, reg, DefaultConfig(), nil)

	p := answer(t, svc, id, true, now).Progress
	assert.Equal(t, sr.PolicySM2, p.Policy)
	assert.Equal(t, 1, p.IntervalDays)
}

func TestApplyAnswerKeepsUnregisteredPinnedPolicy(t *testing.T) {
	m, svc := newFixture(t)
	id := m.addCards(deckID, 1)[0]
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: id, Status: models.StatusNew, TimesSeen: 1, Policy: "leitner"})

	p := answer(t, svc, id, true, now).Progress
	assert.Equal(t, "leitner", p.Policy)
	assert.Equal(t, 2, p.TimesSeen)
}

func TestApplyAnswerQuality(t *testing.T) {
	m, _ := newFixture(t)
	id := m.addCards(deckID, 1)[0]
	svc := NewService(m, m, m, sr.NewRegistry(sr.NewSM2(nil)), DefaultConfig(), nil)

	q := 1
	res, err := svc.ApplyAnswer(context.Background(), Answer{LearnerID: learnerID, CardID: id, Learned: true, Quality: &q}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, res.Progress.Status)
	assert.Equal(t, 0, res.Progress.TimesCorrect)

	q = 7
	_, err = svc.ApplyAnswer(context.Background(), Answer{LearnerID: learnerID, CardID: id, Quality: &q}, now)
	assert.True(t, apperr.IsInvalid(err))
}

func TestApplyAnswerUnknownStatusFallsBackToNew(t *testing.T) {
	m, svc := newFixture(t)
	id := m.addCards(deckID, 1)[0]
	m.setProgress(models.Progress{LearnerID: learnerID, CardID: id, Status: "suspended", TimesSeen: 3})

	res := answer(t, svc, id, true, now)
	assert.Equal(t, KindReview, res.Kind)
	assert.Equal(t, models.StatusLearning, res.Progress.Status)
	assert.Equal(t, int64(1), res.Progress.Stage.Int64)
}

func TestApplyAnswerUsesConfiguredDay(t *testing.T) {
	m, _ := newFixture(t)
	id := m.addCards(deckID, 1)[0]
	cfg := DefaultConfig()
	cfg.Location = time.FixedZone("UTC+2", 2*60*60)
	svc := NewService(m, m, m, nil, cfg, nil)

	late := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	res := answer(t, svc, id, true, late)
	assert.Equal(t, "2024-03-11", res.Day)
	assert.Equal(t, 1, m.counters[models.CounterKey{LearnerID: learnerID, DeckID: deckID, Day: "2024-03-11"}].NewDone)
}

func TestApplyAnswerAccess(t *testing.T) {
	m, svc := newFixture(t)
	id := m.addCards(deckID, 1)[0]

	_, err := svc.ApplyAnswer(context.Background(), Answer{LearnerID: outsiderID, CardID: id, Learned: true}, now)
	assert.True(t, apperr.IsNotFound(err))
	_, err = svc.ApplyAnswer(context.Background(), Answer{LearnerID: learnerID, CardID: 12345}, now)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, m.counters)
}

func TestBuildStudyStatus(t *testing.T) {
	m, svc := newFixture(t)
	addDue(m, 2)
	ids := m.addCards(deckID, 5)
	m.learning(learnerID, ids[0], 3, now.Add(2*time.Hour))
	m.counters[models.CounterKey{LearnerID: learnerID, DeckID: deckID, Day: "2024-03-10"}] = &models.DailyCounter{
		ItemsDone: 6, ReviewsDone: 4, NewDone: 2,
	}

	st, err := svc.BuildStudyStatus(context.Background(), learnerID, deckID, &Quotas{MaxNewPerDay: 3, MaxReviewsPerDay: 3}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, st.DueCount)
	assert.Equal(t, 4, st.NewAvailable)
	assert.Equal(t, 4, st.ReviewedToday)
	assert.Equal(t, 2, st.NewToday)
	assert.Equal(t, 0, st.RemainingReviewQuota)
	assert.Equal(t, 1, st.RemainingNewQuota)
	require.NotNil(t, st.NextDueAt)
	assert.Equal(t, now.Add(-2*time.Minute), *st.NextDueAt)

	st, err = svc.BuildStudyStatus(context.Background(), learnerID, deckID, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 96, st.RemainingReviewQuota)
	assert.Equal(t, 8, st.RemainingNewQuota)

	_, err = svc.BuildStudyStatus(context.Background(), learnerID, deckID, &Quotas{MaxNewPerDay: -1}, now)
	assert.True(t, apperr.IsInvalid(err))
	_, err = svc.BuildStudyStatus(context.Background(), outsiderID, deckID, nil, now)
	assert.True(t, apperr.IsNotFound(err))
}
