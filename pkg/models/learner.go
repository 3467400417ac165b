package models

import (
	"database/sql"
	"time"
)

// Learner is a person studying cards, optionally linked to a Telegram account.
type Learner struct {
	ID                  int64         `json:"id" db:"id"`
	TelegramID          sql.NullInt64 `json:"telegram_id" db:"telegram_id"`
	Username            string        `json:"username" db:"username"`
	DailyCardTarget     int           `json:"daily_card_target" db:"daily_card_target"`     // whole-day capacity used by the planner
	DailyNewTarget      int           `json:"daily_new_target" db:"daily_new_target"`       // new cards the planner aims for
	MaxNewPerDay        int           `json:"max_new_per_day" db:"max_new_per_day"`         // hard quota for batches
	MaxReviewsPerDay    int           `json:"max_reviews_per_day" db:"max_reviews_per_day"` // hard quota for batches
	NotificationEnabled bool          `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int           `json:"notification_hour" db:"notification_hour"` // 0-23, in the configured timezone
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
}

// Default learner settings.
const (
	DefaultDailyCardTarget  = 20
	DefaultDailyNewTarget   = 7
	DefaultMaxNewPerDay     = 10
	DefaultMaxReviewsPerDay = 100
	DefaultNotificationHour = 9
)
