package models

// DayLayout is the format of DailyCounter.Day.
const DayLayout = "2006-01-02"

// DailyCounter counts answers given by a learner in one deck on one calendar day.
type DailyCounter struct {
	ID          int64  `json:"id" db:"id"`
	LearnerID   int64  `json:"learner_id" db:"learner_id"`
	DeckID      int64  `json:"deck_id" db:"deck_id"`
	Day         string `json:"day" db:"day"`
	ItemsDone   int    `json:"items_done" db:"items_done"`
	ReviewsDone int    `json:"reviews_done" db:"reviews_done"`
	NewDone     int    `json:"new_done" db:"new_done"`
}

// CounterKey identifies a ledger row.
type CounterKey struct {
	LearnerID int64
	DeckID    int64
	Day       string
}

// DayTotals is the sum of a learner's counters over all decks for a day.
type DayTotals struct {
	Day         string `json:"day" db:"day"`
	ItemsDone   int    `json:"items_done" db:"items_done"`
	ReviewsDone int    `json:"reviews_done" db:"reviews_done"`
	NewDone     int    `json:"new_done" db:"new_done"`
}
