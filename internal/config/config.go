package config

import (
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/spaced_repetition"
	"github.com/example/srsbot/internal/study"
)

// Config holds every tunable of the application.
type Config struct {
	DBType      string
	DatabaseURL string
	LogMode     string
	Location    *time.Location

	// Required by the bot only.
	TelegramToken string
	DefaultPolicy string

	BatchMin         int
	BatchMax         int
	BatchDefault     int
	NewRatio         float64
	MaxNewPerDay     int
	MaxReviewsPerDay int

	BacklogThreshold    int
	ReviewShare         float64
	SurvivalReviewShare float64

	LadderRetryDelay  time.Duration
	LadderStageDelays []time.Duration

	SM2InitialEase       float64
	SM2MinEase           float64
	SM2MaxEase           float64
	SM2MaxIntervalDays   int
	SM2FailDelay         time.Duration
	SM2JitterPct         float64
	SM2MasteredAfterDays int

	NotificationStartHour int
	NotificationEndHour   int
	ReminderRatePerSecond float64
}

var defaults = map[string]interface{}{
	"DB_TYPE":                    "sqlite",
	"DATABASE_URL":               "data/srsbot.db",
	"LOG_MODE":                   "dev",
	"TIMEZONE":                   "UTC",
	"TELEGRAM_BOT_TOKEN":         "",
	"DEFAULT_POLICY":             spaced_repetition.PolicyLadder,
	"STUDY_BATCH_MIN":            1,
	"STUDY_BATCH_MAX":            20,
	"STUDY_BATCH_DEFAULT":        20,
	"STUDY_NEW_RATIO":            0.3,
	"STUDY_MAX_NEW_PER_DAY":      10,
	"STUDY_MAX_REVIEWS_PER_DAY":  100,
	"PLAN_BACKLOG_THRESHOLD":     150,
	"PLAN_REVIEW_SHARE":          0.7,
	"PLAN_SURVIVAL_REVIEW_SHARE": 1.0,
	"LADDER_RETRY_DELAY":         "45s",
	"LADDER_STAGE_DELAYS":        "5m,1h,12h,72h",
	"SM2_INITIAL_EASE":           2.5,
	"SM2_MIN_EASE":               1.3,
	"SM2_MAX_EASE":               3.0,
	"SM2_MAX_INTERVAL_DAYS":      365,
	"SM2_FAIL_DELAY":             "10m",
	"SM2_JITTER_PCT":             0.05,
	"SM2_MASTERED_AFTER_DAYS":    180,
	"NOTIFICATION_START_HOUR":    4,
	"NOTIFICATION_END_HOUR":      18,
	"REMINDER_RATE_PER_SECOND":   20.0,
}

// Load reads envFile (a missing file is fine) and the process environment.
// v may carry values bound from command-line flags; nil means a fresh viper.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, apperr.Invalid("cannot read env file %s: %v", envFile, err)
		}
	}
	if v == nil {
		v = viper.New()
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	cfg := &Config{
		DBType:                strings.ToLower(v.GetString("DB_TYPE")),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		LogMode:               v.GetString("LOG_MODE"),
		TelegramToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		DefaultPolicy:         v.GetString("DEFAULT_POLICY"),
		BatchMin:              v.GetInt("STUDY_BATCH_MIN"),
		BatchMax:              v.GetInt("STUDY_BATCH_MAX"),
		BatchDefault:          v.GetInt("STUDY_BATCH_DEFAULT"),
		NewRatio:              v.GetFloat64("STUDY_NEW_RATIO"),
		MaxNewPerDay:          v.GetInt("STUDY_MAX_NEW_PER_DAY"),
		MaxReviewsPerDay:      v.GetInt("STUDY_MAX_REVIEWS_PER_DAY"),
		BacklogThreshold:      v.GetInt("PLAN_BACKLOG_THRESHOLD"),
		ReviewShare:           v.GetFloat64("PLAN_REVIEW_SHARE"),
		SurvivalReviewShare:   v.GetFloat64("PLAN_SURVIVAL_REVIEW_SHARE"),
		SM2InitialEase:        v.GetFloat64("SM2_INITIAL_EASE"),
		SM2MinEase:            v.GetFloat64("SM2_MIN_EASE"),
		SM2MaxEase:            v.GetFloat64("SM2_MAX_EASE"),
		SM2MaxIntervalDays:    v.GetInt("SM2_MAX_INTERVAL_DAYS"),
		SM2JitterPct:          v.GetFloat64("SM2_JITTER_PCT"),
		SM2MasteredAfterDays:  v.GetInt("SM2_MASTERED_AFTER_DAYS"),
		NotificationStartHour: v.GetInt("NOTIFICATION_START_HOUR"),
		NotificationEndHour:   v.GetInt("NOTIFICATION_END_HOUR"),
		ReminderRatePerSecond: v.GetFloat64("REMINDER_RATE_PER_SECOND"),
	}

	var err error
	if cfg.Location, err = time.LoadLocation(v.GetString("TIMEZONE")); err != nil {
		return nil, apperr.Invalid("TIMEZONE: %v", err)
	}
	if cfg.LadderRetryDelay, err = parseDuration("LADDER_RETRY_DELAY", v.GetString("LADDER_RETRY_DELAY")); err != nil {
		return nil, err
	}
	if cfg.SM2FailDelay, err = parseDuration("SM2_FAIL_DELAY", v.GetString("SM2_FAIL_DELAY")); err != nil {
		return nil, err
	}
	for _, part := range strings.Split(v.GetString("LADDER_STAGE_DELAYS"), ",") {
		d, err := parseDuration("LADDER_STAGE_DELAYS", part)
		if err != nil {
			return nil, err
		}
		cfg.LadderStageDelays = append(cfg.LadderStageDelays, d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.Invalid("%s: %v", key, err)
	}
	if d <= 0 {
		return 0, apperr.Invalid("%s must be positive, got %s", key, s)
	}
	return d, nil
}

func validShare(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite", "postgres":
	default:
		return apperr.Invalid("DB_TYPE must be sqlite or postgres, got %q", c.DBType)
	}
	if c.DatabaseURL == "" {
		return apperr.Invalid("DATABASE_URL is empty")
	}
	switch c.DefaultPolicy {
	case spaced_repetition.PolicyLadder, spaced_repetition.PolicySM2:
	default:
		return apperr.Invalid("DEFAULT_POLICY must be ladder or sm2, got %q", c.DefaultPolicy)
	}
	if c.BatchMin < 1 || c.BatchMin > c.BatchMax {
		return apperr.Invalid("batch bounds %d..%d are invalid", c.BatchMin, c.BatchMax)
	}
	if c.BatchDefault < c.BatchMin || c.BatchDefault > c.BatchMax {
		return apperr.Invalid("STUDY_BATCH_DEFAULT %d is outside %d..%d", c.BatchDefault, c.BatchMin, c.BatchMax)
	}
	if !validShare(c.NewRatio) {
		return apperr.Invalid("STUDY_NEW_RATIO must be within [0,1], got %v", c.NewRatio)
	}
	if !validShare(c.ReviewShare) || !validShare(c.SurvivalReviewShare) {
		return apperr.Invalid("plan review shares must be within [0,1]")
	}
	if c.MaxNewPerDay < 0 || c.MaxReviewsPerDay < 0 || c.BacklogThreshold < 0 {
		return apperr.Invalid("quotas and backlog threshold must not be negative")
	}
	if c.SM2MinEase <= 0 || c.SM2MinEase > c.SM2MaxEase {
		return apperr.Invalid("SM2 ease bounds %v..%v are invalid", c.SM2MinEase, c.SM2MaxEase)
	}
	if c.SM2InitialEase < c.SM2MinEase || c.SM2InitialEase > c.SM2MaxEase {
		return apperr.Invalid("SM2_INITIAL_EASE %v is outside the ease bounds", c.SM2InitialEase)
	}
	if c.SM2MaxIntervalDays < 1 || !validShare(c.SM2JitterPct) || c.SM2MasteredAfterDays < 0 {
		return apperr.Invalid("SM2 interval settings are invalid")
	}
	if c.NotificationStartHour < 0 || c.NotificationEndHour > 23 || c.NotificationStartHour > c.NotificationEndHour {
		return apperr.Invalid("notification window %d..%d is invalid", c.NotificationStartHour, c.NotificationEndHour)
	}
	if c.ReminderRatePerSecond <= 0 {
		return apperr.Invalid("REMINDER_RATE_PER_SECOND must be positive")
	}
	return nil
}

// Study returns the engine settings.
func (c *Config) Study() study.Config {
	return study.Config{
		BatchMin:            c.BatchMin,
		BatchMax:            c.BatchMax,
		BatchDefault:        c.BatchDefault,
		NewRatio:            c.NewRatio,
		MaxNewPerDay:        c.MaxNewPerDay,
		MaxReviewsPerDay:    c.MaxReviewsPerDay,
		BacklogThreshold:    c.BacklogThreshold,
		ReviewShare:         c.ReviewShare,
		SurvivalReviewShare: c.SurvivalReviewShare,
		Location:            c.Location,
	}
}

// Ladder returns the configured fixed ladder.
func (c *Config) Ladder() spaced_repetition.Ladder {
	return spaced_repetition.Ladder{
		RetryDelay:  c.LadderRetryDelay,
		StageDelays: append([]time.Duration(nil), c.LadderStageDelays...),
	}
}

// Policies returns the registry of scheduling policies. DefaultPolicy serves
// decks stored without one.
func (c *Config) Policies() *spaced_repetition.Registry {
	sm := spaced_repetition.NewSM2(rand.New(rand.NewSource(time.Now().UnixNano())))
	sm.InitialEase = c.SM2InitialEase
	sm.MinEase = c.SM2MinEase
	sm.MaxEase = c.SM2MaxEase
	sm.MaxInterval = c.SM2MaxIntervalDays
	sm.FailDelay = c.SM2FailDelay
	sm.JitterPct = c.SM2JitterPct
	sm.MasteredAfterDays = c.SM2MasteredAfterDays
	sm.MaxStage = c.Ladder().MaxStage()
	ladder := spaced_repetition.NewLadderPolicy(c.Ladder())
	if c.DefaultPolicy == spaced_repetition.PolicySM2 {
		return spaced_repetition.NewRegistry(sm, ladder)
	}
	return spaced_repetition.NewRegistry(ladder, sm)
}
