package spaced_repetition

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// SM2 is the ease-factor alternative to the ladder.
type SM2 struct {
	// Answers at or above this quality count as a pass
	PassThreshold QualityResponse
	// Intervals in days for the first successful repetitions
	GraduationDays []int
	InitialEase    float64
	MinEase        float64
	MaxEase        float64
	// Maximum interval in days
	MaxInterval int
	// Delay before a failed card comes back
	FailDelay time.Duration
	// Relative jitter applied to intervals of 3 days and more, e.g. 0.05 for ±5%
	JitterPct float64
	// Interval in days at which a card is mastered; 0 disables mastering
	MasteredAfterDays int
	// Stage reported while learning is min(repetitions, MaxStage), at least 1
	MaxStage int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSM2 returns an SM2 policy with default settings. rnd drives the jitter;
// nil disables it.
func NewSM2(rnd *rand.Rand) *SM2 {
	return &SM2{
		PassThreshold:     QualityCorrectDifficult,
		GraduationDays:    []int{1, 6},
		InitialEase:       2.5,
		MinEase:           1.3,
		MaxEase:           3.0,
		MaxInterval:       365,
		FailDelay:         10 * time.Minute,
		JitterPct:         0.05,
		MasteredAfterDays: 180,
		MaxStage:          5,
		rnd:               rnd,
	}
}

func (sm *SM2) Name() string { return PolicySM2 }

// Next implements Policy.
func (sm *SM2) Next(cur Schedule, out Outcome, now time.Time) Schedule {
	if _, ok := cur.State.(Mastered); ok {
		next := cur
		next.DueAt = nil
		return next
	}

	next := cur
	next.EaseFactor = sm.nextEase(cur.EaseFactor, out.Quality)

	if out.Quality < sm.PassThreshold {
		next.Repetitions = 0
		next.IntervalDays = 0
		due := now.Add(sm.FailDelay)
		next.DueAt = &due
		if _, learning := cur.State.(Learning); learning {
			next.State = Learning{Stage: 1}
		} else {
			next.State = New{}
		}
		return next
	}

	reps := cur.Repetitions + 1
	var interval int
	if reps <= len(sm.GraduationDays) {
		interval = sm.GraduationDays[reps-1]
	} else {
		interval = int(math.Round(float64(cur.IntervalDays) * next.EaseFactor))
	}
	interval = sm.jitter(interval)
	if interval > sm.MaxInterval {
		interval = sm.MaxInterval
	}
	if interval < 1 {
		interval = 1
	}

	next.Repetitions = reps
	next.IntervalDays = interval
	stage := min(max(reps, 1), sm.MaxStage)

	if sm.MasteredAfterDays > 0 && interval >= sm.MasteredAfterDays {
		next.State = Mastered{Stage: stage}
		next.DueAt = nil
		return next
	}
	due := now.AddDate(0, 0, interval)
	next.State = Learning{Stage: stage}
	next.DueAt = &due
	return next
}

func (sm *SM2) nextEase(ef float64, q QualityResponse) float64 {
	if ef == 0 {
		ef = sm.InitialEase
	}
	d := 5.0 - float64(q)
	ef += 0.1 - d*(0.08+d*0.02)
	if ef < sm.MinEase {
		ef = sm.MinEase
	}
	if ef > sm.MaxEase {
		ef = sm.MaxEase
	}
	return ef
}

func (sm *SM2) jitter(interval int) int {
	if sm.rnd == nil || sm.JitterPct <= 0 || interval < 3 {
		return interval
	}
	sm.mu.Lock()
	r := sm.rnd.Float64()
	sm.mu.Unlock()
	delta := float64(interval) * sm.JitterPct * (2*r - 1)
	return interval + int(math.Round(delta))
}
