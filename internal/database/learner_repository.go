package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

const learnerColumns = `id, telegram_id, username, daily_card_target, daily_new_target,
	max_new_per_day, max_reviews_per_day, notification_enabled, notification_hour, created_at`

// LearnerRepository handles database operations for learners
type LearnerRepository struct {
	db *sqlx.DB
}

// NewLearnerRepository creates a new repository instance
func NewLearnerRepository(db *sqlx.DB) *LearnerRepository {
	return &LearnerRepository{db: db}
}

// CreateLearner inserts l and fills its ID. A duplicate Telegram ID is a conflict.
func (r *LearnerRepository) CreateLearner(ctx context.Context, l *models.Learner) error {
	query := r.db.Rebind(`
		INSERT INTO learners (
			telegram_id, username, daily_card_target, daily_new_target,
			max_new_per_day, max_reviews_per_day, notification_enabled, notification_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query,
		l.TelegramID,
		l.Username,
		l.DailyCardTarget,
		l.DailyNewTarget,
		l.MaxNewPerDay,
		l.MaxReviewsPerDay,
		l.NotificationEnabled,
		l.NotificationHour,
	).Scan(&l.ID)
	if err != nil {
		return conflictOr(errors.Wrap(err, "failed to create learner"), "learner %q already exists", l.Username)
	}
	return nil
}

// Learner returns a learner by ID
func (r *LearnerRepository) Learner(ctx context.Context, id int64) (*models.Learner, error) {
	var l models.Learner
	err := r.db.GetContext(ctx, &l, r.db.Rebind("SELECT "+learnerColumns+" FROM learners WHERE id = ?"), id)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get learner"), "learner %d not found", id)
	}
	return &l, nil
}

// LearnerByTelegramID returns the learner linked to a Telegram account
func (r *LearnerRepository) LearnerByTelegramID(ctx context.Context, telegramID int64) (*models.Learner, error) {
	var l models.Learner
	err := r.db.GetContext(ctx, &l, r.db.Rebind("SELECT "+learnerColumns+" FROM learners WHERE telegram_id = ?"), telegramID)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get learner"), "no learner for telegram id %d", telegramID)
	}
	return &l, nil
}

// LearnerByUsername returns a learner by username
func (r *LearnerRepository) LearnerByUsername(ctx context.Context, username string) (*models.Learner, error) {
	var l models.Learner
	err := r.db.GetContext(ctx, &l, r.db.Rebind("SELECT "+learnerColumns+" FROM learners WHERE username = ? ORDER BY id LIMIT 1"), username)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get learner"), "learner %q not found", username)
	}
	return &l, nil
}

// UpdateSettings saves a learner's targets, quotas and notification settings
func (r *LearnerRepository) UpdateSettings(ctx context.Context, l *models.Learner) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE learners SET
			daily_card_target = ?,
			daily_new_target = ?,
			max_new_per_day = ?,
			max_reviews_per_day = ?,
			notification_enabled = ?,
			notification_hour = ?
		WHERE id = ?`),
		l.DailyCardTarget,
		l.DailyNewTarget,
		l.MaxNewPerDay,
		l.MaxReviewsPerDay,
		l.NotificationEnabled,
		l.NotificationHour,
		l.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update learner")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("learner %d not found", l.ID)
	}
	return nil
}

// LearnersToNotify returns Telegram-linked learners with notifications enabled at hour
func (r *LearnerRepository) LearnersToNotify(ctx context.Context, hour int) ([]models.Learner, error) {
	var learners []models.Learner
	err := r.db.SelectContext(ctx, &learners, r.db.Rebind(`
		SELECT `+learnerColumns+` FROM learners
		WHERE notification_enabled = ? AND notification_hour = ? AND telegram_id IS NOT NULL
		ORDER BY id`), true, hour)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get learners to notify")
	}
	return learners, nil
}
