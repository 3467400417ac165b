package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/apperr"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Print today's counters, goal and streak; with --deck also the deck queue",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		var deckID int64
		if name, _ := cmd.Flags().GetString("deck"); name != "" {
			d, err := a.deck(ctx, cmd, l)
			if err != nil {
				return err
			}
			deckID = d.ID
		}
		threshold, _ := cmd.Flags().GetInt("threshold")
		sum, err := a.history.Summary(ctx, l.ID, deckID, threshold, time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	}),
}

var progressRangeCmd = &cobra.Command{
	Use:   "range <from> <to>",
	Short: "Print daily totals between two YYYY-MM-DD days, inclusive",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		days, err := a.history.Range(ctx, l.ID, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), days)
	}),
}

var progressMonthCmd = &cobra.Command{
	Use:   "month",
	Short: "Print daily totals of a calendar month",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		now := time.Now().In(a.cfg.Location)
		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = int(now.Month())
		}
		days, err := a.history.Month(ctx, l.ID, year, month)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), days)
	}),
}

var progressStreakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Print the current and best streak",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		threshold, _ := cmd.Flags().GetInt("threshold")
		streak, err := a.history.Streak(ctx, l.ID, threshold, time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), streak)
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the progress of --learner in --deck",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return apperr.Invalid("reset deletes progress, pass --yes to confirm")
		}
		l, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		n, err := a.store.ResetDeck(ctx, l.ID, d.ID)
		if err != nil {
			return err
		}
		a.log.Info("Reset deck progress", "learner_id", l.ID, "deck_id", d.ID, "cards", n)
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{"deck_id": d.ID, "reset": n})
	}),
}

func init() {
	for _, c := range []*cobra.Command{progressCmd, progressStreakCmd} {
		c.Flags().Int("threshold", 0, "Answers a day that count towards a streak (default 10)")
	}
	progressMonthCmd.Flags().Int("year", 0, "Year (default: this year)")
	progressMonthCmd.Flags().Int("month", 0, "Month 1-12 (default: this month)")
	progressCmd.AddCommand(progressRangeCmd, progressMonthCmd, progressStreakCmd)

	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
}
