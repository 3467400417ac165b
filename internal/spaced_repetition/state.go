package spaced_repetition

import (
	"database/sql"

	"github.com/example/srsbot/pkg/models"
)

// State is the progress state of a card: New, Learning{Stage} or Mastered{Stage}.
// The set of implementations is closed; stage exists only where it means something.
type State interface {
	Status() string
	isState()
}

// New is a card that has not entered the learning ladder yet.
type New struct{}

// Learning is a card on the ladder; Stage is 1-based.
type Learning struct {
	Stage int
}

// Mastered is terminal. Stage keeps the last ladder stage for display.
type Mastered struct {
	Stage int
}

func (New) Status() string      { return models.StatusNew }
func (Learning) Status() string { return models.StatusLearning }
func (Mastered) Status() string { return models.StatusMastered }

func (New) isState()      {}
func (Learning) isState() {}
func (Mastered) isState() {}

// StateFromRecord decodes a stored status/stage pair. An unrecognized status
// decodes to New with ok=false; a learning record without a stage decodes to stage 1.
func StateFromRecord(status string, stage sql.NullInt64) (State, bool) {
	switch status {
	case models.StatusNew, "":
		return New{}, true
	case models.StatusLearning:
		s := 1
		if stage.Valid && stage.Int64 >= 1 {
			s = int(stage.Int64)
		}
		return Learning{Stage: s}, true
	case models.StatusMastered:
		s := 0
		if stage.Valid {
			s = int(stage.Int64)
		}
		return Mastered{Stage: s}, true
	default:
		return New{}, false
	}
}

// Encode is the inverse of StateFromRecord.
func Encode(s State) (string, sql.NullInt64) {
	switch st := s.(type) {
	case Learning:
		return models.StatusLearning, sql.NullInt64{Int64: int64(st.Stage), Valid: true}
	case Mastered:
		return models.StatusMastered, sql.NullInt64{Int64: int64(st.Stage), Valid: st.Stage > 0}
	default:
		return models.StatusNew, sql.NullInt64{}
	}
}
