package spaced_repetition

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSM2GraduationSequence(t *testing.T) {
	sm := NewSM2(nil)
	good := OutcomeFromLearned(true)

	s := sm.Next(Schedule{State: New{}}, good, now)
	assert.Equal(t, Learning{Stage: 1}, s.State)
	assert.Equal(t, 1, s.IntervalDays)
	assert.Equal(t, 1, s.Repetitions)
	assert.InDelta(t, 2.5, s.EaseFactor, 1e-9)
	require.NotNil(t, s.DueAt)
	assert.Equal(t, now.AddDate(0, 0, 1), *s.DueAt)

	s = sm.Next(s, good, now)
	assert.Equal(t, Learning{Stage: 2}, s.State)
	assert.Equal(t, 6, s.IntervalDays)

	s = sm.Next(s, good, now)
	assert.Equal(t, Learning{Stage: 3}, s.State)
	assert.Equal(t, 15, s.IntervalDays)
	assert.Equal(t, now.AddDate(0, 0, 15), *s.DueAt)
}

func TestSM2FailureResets(t *testing.T) {
	sm := NewSM2(nil)
	cur := Schedule{State: Learning{Stage: 3}, EaseFactor: 2.5, IntervalDays: 15, Repetitions: 3}

	s := sm.Next(cur, OutcomeFromLearned(false), now)
	assert.Equal(t, Learning{Stage: 1}, s.State)
	assert.Equal(t, 0, s.Repetitions)
	assert.Equal(t, 0, s.IntervalDays)
	assert.InDelta(t, 2.18, s.EaseFactor, 1e-9)
	assert.Equal(t, now.Add(10*time.Minute), *s.DueAt)

	s = sm.Next(Schedule{State: New{}}, OutcomeFromQuality(QualityBlackout), now)
	assert.Equal(t, New{}, s.State)
	assert.InDelta(t, 1.7, s.EaseFactor, 1e-9)
}

func TestSM2EaseIsClamped(t *testing.T) {
	sm := NewSM2(nil)
	s := Schedule{State: New{}}
	for i := 0; i < 12; i++ {
		s = sm.Next(s, OutcomeFromQuality(QualityPerfect), now)
	}
	assert.InDelta(t, sm.MaxEase, s.EaseFactor, 1e-9)

	s = Schedule{State: Learning{Stage: 1}, EaseFactor: 1.35}
	s = sm.Next(s, OutcomeFromQuality(QualityBlackout), now)
	assert.InDelta(t, sm.MinEase, s.EaseFactor, 1e-9)
}

func TestSM2MastersAndStaysMastered(t *testing.T) {
	sm := NewSM2(nil)
	sm.MasteredAfterDays = 10

	s := Schedule{State: Learning{Stage: 2}, EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}
	s = sm.Next(s, OutcomeFromLearned(true), now)
	assert.Equal(t, Mastered{Stage: 3}, s.State)
	assert.Nil(t, s.DueAt)

	again := sm.Next(s, OutcomeFromLearned(false), now)
	assert.Equal(t, s.State, again.State)
	assert.Nil(t, again.DueAt)
}

func TestSM2IntervalCap(t *testing.T) {
	sm := NewSM2(nil)
	sm.MasteredAfterDays = 0

	s := Schedule{State: Learning{Stage: 5}, EaseFactor: 2.5, IntervalDays: 300, Repetitions: 9}
	s = sm.Next(s, OutcomeFromLearned(true), now)
	assert.Equal(t, sm.MaxInterval, s.IntervalDays)
	assert.Equal(t, Learning{Stage: 5}, s.State)
}

func TestSM2JitterIsBounded(t *testing.T) {
	sm := NewSM2(rand.New(rand.NewSource(42)))
	sm.MasteredAfterDays = 0

	cur := Schedule{State: Learning{Stage: 3}, EaseFactor: 2.5, IntervalDays: 40, Repetitions: 3}
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		s := sm.Next(cur, OutcomeFromLearned(true), now)
		// 40 * 2.5 = 100 days, ±5%
		assert.GreaterOrEqual(t, s.IntervalDays, 95)
		assert.LessOrEqual(t, s.IntervalDays, 105)
		seen[s.IntervalDays] = true
	}
	assert.Greater(t, len(seen), 1)

	short := sm.Next(Schedule{State: New{}}, OutcomeFromLearned(true), now)
	assert.Equal(t, 1, short.IntervalDays)
}

func TestOutcomeFromQualityClamps(t *testing.T) {
	assert.Equal(t, Outcome{Learned: true, Quality: QualityPerfect}, OutcomeFromQuality(9))
	assert.Equal(t, Outcome{Learned: false, Quality: QualityBlackout}, OutcomeFromQuality(-1))
	assert.True(t, OutcomeFromQuality(QualityCorrectDifficult).Learned)
}

func TestRegistry(t *testing.T) {
	ladder := NewLadderPolicy(DefaultLadder())
	sm := NewSM2(nil)
	r := NewRegistry(ladder, sm)

	assert.Same(t, sm, r.Get(PolicySM2))
	assert.Same(t, ladder, r.Get(PolicyLadder))
	assert.Same(t, ladder, r.Get("unknown"))
	assert.True(t, r.Has(PolicySM2))
	assert.False(t, r.Has(""))

	s := ladder.Next(Schedule{State: Learning{Stage: 4}, EaseFactor: 2.1}, OutcomeFromLearned(true), now)
	assert.Equal(t, Learning{Stage: 5}, s.State)
	assert.InDelta(t, 2.1, s.EaseFactor, 1e-9)
	assert.Equal(t, now.Add(72*time.Hour), *s.DueAt)
}
