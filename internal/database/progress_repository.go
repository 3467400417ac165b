package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

// Candidate rows join a card with the learner's progress. Progress columns are
// coalesced so cards without progress scan into a zero record.
const candidateColumns = `
	c.id AS "card.id",
	c.deck_id AS "card.deck_id",
	c.front AS "card.front",
	c.back AS "card.back",
	c.example AS "card.example",
	c.created_at AS "card.created_at",
	COALESCE(p.id, 0) AS "progress.id",
	COALESCE(p.learner_id, 0) AS "progress.learner_id",
	COALESCE(p.card_id, 0) AS "progress.card_id",
	COALESCE(p.status, 'new') AS "progress.status",
	p.stage AS "progress.stage",
	p.due_at AS "progress.due_at",
	p.last_reviewed_at AS "progress.last_reviewed_at",
	COALESCE(p.times_seen, 0) AS "progress.times_seen",
	COALESCE(p.times_correct, 0) AS "progress.times_correct",
	COALESCE(p.policy, '') AS "progress.policy",
	COALESCE(p.ease_factor, 0) AS "progress.ease_factor",
	COALESCE(p.interval_days, 0) AS "progress.interval_days",
	COALESCE(p.repetitions, 0) AS "progress.repetitions"`

const progressColumns = `id, learner_id, card_id, status, stage, due_at, last_reviewed_at,
	times_seen, times_correct, policy, ease_factor, interval_days, repetitions, created_at, updated_at`

type candidateRow struct {
	Card     models.Card     `db:"card"`
	Progress models.Progress `db:"progress"`
}

func (r candidateRow) candidate() study.Candidate {
	c := study.Candidate{Card: r.Card}
	if r.Progress.ID != 0 {
		p := r.Progress
		c.Progress = &p
	}
	return c
}

// ProgressRepository handles per-card progress records
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) selectCandidates(ctx context.Context, where, order string, args []interface{}, exclude []int64, limit, offset int) ([]study.Candidate, int, error) {
	if len(exclude) > 0 {
		where += " AND c.id NOT IN (?)"
		args = append(args, exclude)
	}

	countQuery, countArgs, err := sqlx.In("SELECT COUNT(*) "+where, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build count query")
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count candidates")
	}
	if limit <= 0 || total == 0 {
		return []study.Candidate{}, total, nil
	}

	query, queryArgs, err := sqlx.In("SELECT "+candidateColumns+" "+where+" ORDER BY "+order+" LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build candidate query")
	}
	var rows []candidateRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), queryArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to get candidates")
	}
	out := make([]study.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.candidate())
	}
	return out, total, nil
}

// FetchDue returns learning cards due at q.Now and the size of the due set.
func (r *ProgressRepository) FetchDue(ctx context.Context, q study.DueQuery) ([]study.Candidate, int, error) {
	where := `
		FROM progress p
		JOIN cards c ON c.id = p.card_id
		WHERE p.learner_id = ? AND c.deck_id = ? AND p.status = ?
			AND p.due_at IS NOT NULL AND p.due_at <= ?`
	order := "p.due_at ASC, c.id ASC"
	if q.Order == study.OrderByWeakness {
		order = `CASE WHEN p.times_seen = 0 THEN 0 ELSE p.times_correct * 1.0 / p.times_seen END ASC, ` + order
	}
	args := []interface{}{q.LearnerID, q.DeckID, models.StatusLearning, q.Now.UTC()}
	return r.selectCandidates(ctx, where, order, args, q.ExcludeIDs, q.Limit, q.Offset)
}

// FetchNew returns cards never answered, or new again and due, ordered by id.
func (r *ProgressRepository) FetchNew(ctx context.Context, q study.NewQuery) ([]study.Candidate, int, error) {
	where := `
		FROM cards c
		LEFT JOIN progress p ON p.card_id = c.id AND p.learner_id = ?
		WHERE c.deck_id = ?
			AND (p.id IS NULL OR (p.status = ? AND (p.due_at IS NULL OR p.due_at <= ?)))`
	args := []interface{}{q.LearnerID, q.DeckID, models.StatusNew, q.Now.UTC()}
	return r.selectCandidates(ctx, where, "c.id ASC", args, q.ExcludeIDs, q.Limit, q.Offset)
}

// NextDueAt returns the earliest due_at over learning records of a deck.
func (r *ProgressRepository) NextDueAt(ctx context.Context, learnerID, deckID int64) (*time.Time, error) {
	// ORDER BY instead of MIN(): SQLite drops the column type on aggregates.
	var due sql.NullTime
	err := r.db.GetContext(ctx, &due, r.db.Rebind(`
		SELECT p.due_at
		FROM progress p
		JOIN cards c ON c.id = p.card_id
		WHERE p.learner_id = ? AND c.deck_id = ? AND p.status = ? AND p.due_at IS NOT NULL
		ORDER BY p.due_at ASC
		LIMIT 1`), learnerID, deckID, models.StatusLearning)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next due date")
	}
	t := due.Time
	return &t, nil
}

// Progress returns the record of a learner and card.
func (r *ProgressRepository) Progress(ctx context.Context, learnerID, cardID int64) (*models.Progress, error) {
	var p models.Progress
	err := r.db.GetContext(ctx, &p, r.db.Rebind("SELECT "+progressColumns+" FROM progress WHERE learner_id = ? AND card_id = ?"), learnerID, cardID)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get progress"), "no progress for card %d", cardID)
	}
	return &p, nil
}

// CountStatuses counts the cards of a deck per status; cards without a
// record count as new.
func (r *ProgressRepository) CountStatuses(ctx context.Context, learnerID, deckID int64) (models.StatusCounts, error) {
	var row struct {
		Total    int `db:"total"`
		Learning int `db:"learning"`
		Mastered int `db:"mastered"`
	}
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT
			COUNT(c.id) AS total,
			COALESCE(SUM(CASE WHEN p.status = ? THEN 1 ELSE 0 END), 0) AS learning,
			COALESCE(SUM(CASE WHEN p.status = ? THEN 1 ELSE 0 END), 0) AS mastered
		FROM cards c
		LEFT JOIN progress p ON p.card_id = c.id AND p.learner_id = ?
		WHERE c.deck_id = ?`), models.StatusLearning, models.StatusMastered, learnerID, deckID)
	if err != nil {
		return models.StatusCounts{}, errors.Wrap(err, "failed to count statuses")
	}
	return models.StatusCounts{
		New:      row.Total - row.Learning - row.Mastered,
		Learning: row.Learning,
		Mastered: row.Mastered,
	}, nil
}

// CountDue counts a learner's due learning cards over all decks.
func (r *ProgressRepository) CountDue(ctx context.Context, learnerID int64, now time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM progress
		WHERE learner_id = ? AND status = ? AND due_at IS NOT NULL AND due_at <= ?`),
		learnerID, models.StatusLearning, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to count due cards")
	}
	return n, nil
}

// ResetDeck deletes a learner's progress on every card of a deck and returns
// the number of deleted records.
func (r *ProgressRepository) ResetDeck(ctx context.Context, learnerID, deckID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM progress
		WHERE learner_id = ? AND card_id IN (SELECT id FROM cards WHERE deck_id = ?)`), learnerID, deckID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reset progress")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "failed to get deleted rows")
}

// RecordAnswer creates the progress record if needed, locks it, applies
// mutate, saves it and adds the delta to the ledger row, all in one
// transaction. The record exists before it is read, so on postgres two first
// answers to one card serialize on the row lock; SQLite runs a single writer.
func (r *ProgressRepository) RecordAnswer(ctx context.Context, a study.AnswerTx, mutate func(p *models.Progress) study.Delta) (*models.Progress, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO progress (learner_id, card_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT (learner_id, card_id) DO NOTHING`),
		a.LearnerID, a.CardID, models.StatusNew,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create progress")
	}

	query := "SELECT " + progressColumns + " FROM progress WHERE learner_id = ? AND card_id = ?"
	if r.db.DriverName() == "postgres" {
		query += " FOR UPDATE"
	}
	var p models.Progress
	if err := tx.GetContext(ctx, &p, tx.Rebind(query), a.LearnerID, a.CardID); err != nil {
		return nil, errors.Wrap(err, "failed to load progress")
	}

	delta := mutate(&p)
	p.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE progress SET
			status = ?,
			stage = ?,
			due_at = ?,
			last_reviewed_at = ?,
			times_seen = ?,
			times_correct = ?,
			policy = ?,
			ease_factor = ?,
			interval_days = ?,
			repetitions = ?,
			updated_at = ?
		WHERE id = ?`),
		p.Status, p.Stage, utcNull(p.DueAt), utcNull(p.LastReviewedAt),
		p.TimesSeen, p.TimesCorrect, p.Policy, p.EaseFactor, p.IntervalDays, p.Repetitions,
		p.UpdatedAt, p.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to save progress")
	}

	key := models.CounterKey{LearnerID: a.LearnerID, DeckID: a.DeckID, Day: a.Day}
	if err := addToDay(ctx, tx, key, delta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit answer")
	}
	return &p, nil
}

func utcNull(t sql.NullTime) sql.NullTime {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
	return t
}
