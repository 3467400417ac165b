package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/example/srsbot/internal/study"
)

// Store bundles the repositories. It implements study.Store, study.Ledger
// and study.AnswerRecorder.
type Store struct {
	*LearnerRepository
	*DeckRepository
	*ProgressRepository
	*DailyProgressRepository

	DB *sqlx.DB
}

var (
	_ study.Store          = (*Store)(nil)
	_ study.Ledger         = (*Store)(nil)
	_ study.AnswerRecorder = (*Store)(nil)
)

// NewStore creates the repositories on db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		LearnerRepository:       NewLearnerRepository(db),
		DeckRepository:          NewDeckRepository(db),
		ProgressRepository:      NewProgressRepository(db),
		DailyProgressRepository: NewDailyProgressRepository(db),
		DB:                      db,
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
