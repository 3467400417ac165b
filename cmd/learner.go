package cmd

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

var learnerCmd = &cobra.Command{
	Use:   "learner",
	Short: "Manage learners",
}

var learnerAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a learner with a personal deck",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		l := &models.Learner{
			Username:            args[0],
			DailyCardTarget:     models.DefaultDailyCardTarget,
			DailyNewTarget:      models.DefaultDailyNewTarget,
			MaxNewPerDay:        models.DefaultMaxNewPerDay,
			MaxReviewsPerDay:    models.DefaultMaxReviewsPerDay,
			NotificationEnabled: false,
			NotificationHour:    models.DefaultNotificationHour,
		}
		if id, _ := cmd.Flags().GetInt64("telegram-id"); id != 0 {
			l.TelegramID = sql.NullInt64{Int64: id, Valid: true}
			l.NotificationEnabled = true
		}
		if err := applySettings(cmd, l); err != nil {
			return err
		}
		if err := a.store.CreateLearner(ctx, l); err != nil {
			return err
		}
		deck := &models.Deck{OwnerID: l.ID, Name: "personal"}
		if err := a.store.CreateDeck(ctx, deck); err != nil {
			return err
		}
		a.log.Info("Registered learner", "learner_id", l.ID, "username", l.Username)
		return printJSON(cmd.OutOrStdout(), l)
	}),
}

var learnerSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the targets, quotas and reminders of --learner",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		if err := applySettings(cmd, l); err != nil {
			return err
		}
		if err := a.store.UpdateSettings(ctx, l); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), l)
	}),
}

var learnerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print --learner and their decks",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		decks, err := a.store.Decks(ctx, l.ID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			*models.Learner
			Decks []models.Deck `json:"decks"`
		}{l, decks})
	}),
}

func init() {
	learnerAddCmd.Flags().Int64("telegram-id", 0, "Telegram user id to link")
	for _, c := range []*cobra.Command{learnerAddCmd, learnerSetCmd} {
		f := c.Flags()
		f.Int("daily-target", 0, "Cards a day the planner aims for")
		f.Int("daily-new", 0, "New cards a day the planner aims for")
		f.Int("max-new", 0, "Hard limit of new cards a day")
		f.Int("max-reviews", 0, "Hard limit of reviews a day")
		f.Int("notify-hour", -1, "Hour of the daily reminder, 0-23")
		f.Bool("notify", false, "Enable daily reminders")
	}
	learnerCmd.AddCommand(learnerAddCmd, learnerSetCmd, learnerShowCmd)
}

// applySettings copies the settings flags that were given onto l.
func applySettings(cmd *cobra.Command, l *models.Learner) error {
	f := cmd.Flags()
	ints := []struct {
		flag string
		dst  *int
	}{
		{"daily-target", &l.DailyCardTarget},
		{"daily-new", &l.DailyNewTarget},
		{"max-new", &l.MaxNewPerDay},
		{"max-reviews", &l.MaxReviewsPerDay},
	}
	for _, it := range ints {
		if !f.Changed(it.flag) {
			continue
		}
		n, _ := f.GetInt(it.flag)
		if n < 0 {
			return apperr.Invalid("--%s must not be negative", it.flag)
		}
		*it.dst = n
	}
	if f.Changed("notify-hour") {
		h, _ := f.GetInt("notify-hour")
		if h < 0 || h > 23 {
			return apperr.Invalid("--notify-hour must be between 0 and 23")
		}
		l.NotificationHour = h
	}
	if f.Changed("notify") {
		l.NotificationEnabled, _ = f.GetBool("notify")
	}
	if l.DailyNewTarget > l.DailyCardTarget {
		return apperr.Invalid("daily new target %d exceeds daily target %d", l.DailyNewTarget, l.DailyCardTarget)
	}
	return nil
}
