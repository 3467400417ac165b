package models

import (
	"database/sql"
	"time"
)

// Progress statuses as stored in the progress table.
const (
	StatusNew      = "new"
	StatusLearning = "learning"
	StatusMastered = "mastered"
)

// Progress tracks one learner's history with one card.
type Progress struct {
	ID             int64         `json:"id" db:"id"`
	LearnerID      int64         `json:"learner_id" db:"learner_id"`
	CardID         int64         `json:"card_id" db:"card_id"`
	Status         string        `json:"status" db:"status"`
	Stage          sql.NullInt64 `json:"stage" db:"stage"` // 1..5, set only while learning
	DueAt          sql.NullTime  `json:"due_at" db:"due_at"`
	LastReviewedAt sql.NullTime  `json:"last_reviewed_at" db:"last_reviewed_at"`
	TimesSeen      int           `json:"times_seen" db:"times_seen"`
	TimesCorrect   int           `json:"times_correct" db:"times_correct"`
	Policy         string        `json:"policy" db:"policy"` // pinned on first answer
	EaseFactor     float64       `json:"ease_factor" db:"ease_factor"`
	IntervalDays   int           `json:"interval_days" db:"interval_days"`
	Repetitions    int           `json:"repetitions" db:"repetitions"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// Accuracy is times_correct / times_seen, 0 for unseen cards.
func (p *Progress) Accuracy() float64 {
	if p == nil || p.TimesSeen <= 0 {
		return 0
	}
	return float64(p.TimesCorrect) / float64(p.TimesSeen)
}

// StatusCounts is the number of cards per status in a deck for one learner.
type StatusCounts struct {
	New      int `json:"new" db:"new"`
	Learning int `json:"learning" db:"learning"`
	Mastered int `json:"mastered" db:"mastered"`
}
