// Package study selects what a learner studies next and applies their answers.
//
// The engine is read-only except for ApplyAnswer. All time-dependent logic takes
// an explicit now; the calendar day used by the daily ledger is now in
// Config.Location.
package study

import (
	"context"
	"time"

	"github.com/example/srsbot/pkg/models"
)

// ItemKind tags a selected card.
type ItemKind string

const (
	KindReview ItemKind = "review"
	KindNew    ItemKind = "new"
)

// Order selects how due cards are prioritized.
type Order int

const (
	// OrderByDue puts the most overdue card first.
	OrderByDue Order = iota
	// OrderByWeakness puts the lowest accuracy first, most overdue breaking ties.
	OrderByWeakness
)

func (o Order) String() string {
	if o == OrderByWeakness {
		return "weakness"
	}
	return "due"
}

// ParseOrder maps "due" and "weakness" to an Order.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "due":
		return OrderByDue, true
	case "weakness":
		return OrderByWeakness, true
	}
	return OrderByDue, false
}

// Candidate is a card with the learner's progress on it; Progress is nil for
// cards the learner never answered.
type Candidate struct {
	Card     models.Card
	Progress *models.Progress
}

// DueQuery selects learning cards with due_at <= Now.
type DueQuery struct {
	LearnerID  int64
	DeckID     int64
	Now        time.Time
	ExcludeIDs []int64
	Limit      int
	Offset     int
	Order      Order
}

// NewQuery selects cards without progress, or new with due_at null or <= Now,
// ordered by card id.
type NewQuery struct {
	LearnerID  int64
	DeckID     int64
	Now        time.Time
	ExcludeIDs []int64
	Limit      int
	Offset     int
}

// Delta is added to a ledger row.
type Delta struct {
	Items   int
	Reviews int
	New     int
}

// AnswerTx identifies the progress record and ledger row touched by one answer.
type AnswerTx struct {
	LearnerID int64
	CardID    int64
	DeckID    int64
	Day       string
}

// Store reads decks, cards and candidate pools. Deck and Card return a
// not-found error when the learner has no access.
type Store interface {
	Deck(ctx context.Context, learnerID, deckID int64) (*models.Deck, error)
	Card(ctx context.Context, learnerID, cardID int64) (*models.Card, error)
	Learner(ctx context.Context, learnerID int64) (*models.Learner, error)
	// FetchDue returns up to Limit due cards and the size of the whole due set.
	FetchDue(ctx context.Context, q DueQuery) ([]Candidate, int, error)
	// FetchNew returns up to Limit new cards and the size of the whole new set.
	FetchNew(ctx context.Context, q NewQuery) ([]Candidate, int, error)
	// NextDueAt is the earliest due_at over learning records, nil if there is none.
	NextDueAt(ctx context.Context, learnerID, deckID int64) (*time.Time, error)
}

// Ledger keeps per (learner, deck, day) answer counters.
type Ledger interface {
	// Today returns the row for key, or a zero row if nothing was answered yet.
	Today(ctx context.Context, key models.CounterKey) (models.DailyCounter, error)
	GetOrCreateToday(ctx context.Context, key models.CounterKey) (*models.DailyCounter, error)
	Increment(ctx context.Context, row *models.DailyCounter, d Delta) error
}

// AnswerRecorder applies an answer atomically: it loads or creates the
// progress record, lets mutate change it, saves it and adds the returned
// delta to the ledger row of tx.Day.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, tx AnswerTx, mutate func(p *models.Progress) Delta) (*models.Progress, error)
}

// Config holds engine bounds and defaults.
type Config struct {
	BatchMin     int
	BatchMax     int
	BatchDefault int

	NewRatio         float64
	MaxNewPerDay     int
	MaxReviewsPerDay int

	BacklogThreshold    int
	ReviewShare         float64
	SurvivalReviewShare float64

	// Location defines the calendar day.
	Location *time.Location
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		BatchMin:            1,
		BatchMax:            20,
		BatchDefault:        20,
		NewRatio:            0.3,
		MaxNewPerDay:        models.DefaultMaxNewPerDay,
		MaxReviewsPerDay:    models.DefaultMaxReviewsPerDay,
		BacklogThreshold:    150,
		ReviewShare:         0.7,
		SurvivalReviewShare: 1.0,
		Location:            time.UTC,
	}
}

// Day is the ledger day of now.
func (c Config) Day(now time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(models.DayLayout)
}
