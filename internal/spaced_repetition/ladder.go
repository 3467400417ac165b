package spaced_repetition

import (
	"database/sql"
	"time"
)

// Ladder is the canonical fixed-ladder schedule.
//
// A new card answered correctly enters stage 1. Each further correct answer
// climbs one stage and waits StageDelays[stage-1]; a correct answer on the
// last stage masters the card. A wrong answer drops exactly one stage (never
// below 1) and comes back after RetryDelay.
type Ladder struct {
	RetryDelay  time.Duration
	StageDelays []time.Duration
}

// DefaultLadder returns the 45s / 5m / 1h / 12h / 72h ladder.
func DefaultLadder() Ladder {
	return Ladder{
		RetryDelay: 45 * time.Second,
		StageDelays: []time.Duration{
			5 * time.Minute,
			time.Hour,
			12 * time.Hour,
			72 * time.Hour,
		},
	}
}

// MaxStage is the last learning stage.
func (l Ladder) MaxStage() int {
	return len(l.StageDelays) + 1
}

// Next computes the state and due time after an answer. It never fails:
// a nil state is treated as New and an out-of-range stage is clamped.
func (l Ladder) Next(s State, learned bool, now time.Time) (State, *time.Time) {
	retry := now.Add(l.RetryDelay)

	switch st := s.(type) {
	case Mastered:
		return st, nil

	case Learning:
		cur := st.Stage
		if cur < 1 {
			cur = 1
		}
		if cur > l.MaxStage() {
			cur = l.MaxStage()
		}
		if !learned {
			return Learning{Stage: max(1, cur-1)}, &retry
		}
		if cur >= l.MaxStage() {
			return Mastered{Stage: l.MaxStage()}, nil
		}
		due := now.Add(l.StageDelays[cur-1])
		return Learning{Stage: cur + 1}, &due

	default:
		if !learned {
			return New{}, &retry
		}
		return Learning{Stage: 1}, &retry
	}
}

// NextState is the transition over plain stored values using the default ladder.
// Unrecognized statuses fall back to New.
func NextState(status string, stage *int, learned bool, now time.Time) (string, *int, *time.Time) {
	var ns sql.NullInt64
	if stage != nil {
		ns = sql.NullInt64{Int64: int64(*stage), Valid: true}
	}
	cur, _ := StateFromRecord(status, ns)

	next, due := DefaultLadder().Next(cur, learned, now)
	newStatus, newStage := Encode(next)
	if !newStage.Valid {
		return newStatus, nil, due
	}
	st := int(newStage.Int64)
	return newStatus, &st, due
}
