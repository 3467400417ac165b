package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Cards per study batch; 0 means the engine default
	BatchSize int
	// Answers a day needs to extend the streak
	StreakThreshold int
	// Largest document accepted for import
	MaxDocumentBytes int
	// Idle time after which a study session is dropped
	SessionTTL time.Duration
	// Name of the deck created for every new learner
	PersonalDeck string
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		BatchSize:        0,
		StreakThreshold:  10,
		MaxDocumentBytes: 5 << 20,
		SessionTTL:       2 * time.Hour,
		PersonalDeck:     "personal",
	}
}
