package database

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

const counterColumns = "id, learner_id, deck_id, day, items_done, reviews_done, new_done"

// DailyProgressRepository is the per (learner, deck, day) answer ledger
type DailyProgressRepository struct {
	db *sqlx.DB
}

// NewDailyProgressRepository creates a new repository instance
func NewDailyProgressRepository(db *sqlx.DB) *DailyProgressRepository {
	return &DailyProgressRepository{db: db}
}

// addToDay creates the row of key if needed and adds d to it. The upsert keeps
// one row per key when first answers of a day race.
func addToDay(ctx context.Context, ext sqlx.ExtContext, key models.CounterKey, d study.Delta) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`
		INSERT INTO daily_progress (learner_id, deck_id, day, items_done, reviews_done, new_done)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, deck_id, day) DO UPDATE SET
			items_done = daily_progress.items_done + excluded.items_done,
			reviews_done = daily_progress.reviews_done + excluded.reviews_done,
			new_done = daily_progress.new_done + excluded.new_done`),
		key.LearnerID, key.DeckID, key.Day, d.Items, d.Reviews, d.New,
	)
	return errors.Wrap(err, "failed to update daily progress")
}

// Today returns the row of key, or a zero row when nothing was answered. It
// never creates rows.
func (r *DailyProgressRepository) Today(ctx context.Context, key models.CounterKey) (models.DailyCounter, error) {
	var row models.DailyCounter
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+counterColumns+` FROM daily_progress
		WHERE learner_id = ? AND deck_id = ? AND day = ?`), key.LearnerID, key.DeckID, key.Day)
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.DailyCounter{LearnerID: key.LearnerID, DeckID: key.DeckID, Day: key.Day}, nil
	}
	if err != nil {
		return models.DailyCounter{}, errors.Wrap(err, "failed to get daily progress")
	}
	return row, nil
}

// GetOrCreateToday returns the row of key, creating it with zero counters.
func (r *DailyProgressRepository) GetOrCreateToday(ctx context.Context, key models.CounterKey) (*models.DailyCounter, error) {
	if err := addToDay(ctx, r.db, key, study.Delta{}); err != nil {
		return nil, err
	}
	row, err := r.Today(ctx, key)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Increment adds d to row and reloads it.
func (r *DailyProgressRepository) Increment(ctx context.Context, row *models.DailyCounter, d study.Delta) error {
	key := models.CounterKey{LearnerID: row.LearnerID, DeckID: row.DeckID, Day: row.Day}
	if err := addToDay(ctx, r.db, key, d); err != nil {
		return err
	}
	fresh, err := r.Today(ctx, key)
	if err != nil {
		return err
	}
	*row = fresh
	return nil
}

// Totals sums a learner's rows over all decks per day within [from, to],
// both "2006-01-02" days. Days without answers are absent.
func (r *DailyProgressRepository) Totals(ctx context.Context, learnerID int64, from, to string) ([]models.DayTotals, error) {
	totals := []models.DayTotals{}
	err := r.db.SelectContext(ctx, &totals, r.db.Rebind(`
		SELECT day,
			SUM(items_done) AS items_done,
			SUM(reviews_done) AS reviews_done,
			SUM(new_done) AS new_done
		FROM daily_progress
		WHERE learner_id = ? AND day >= ? AND day <= ?
		GROUP BY day
		ORDER BY day`), learnerID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get daily totals")
	}
	return totals, nil
}
