package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

// target resolves --learner and --deck.
func (a *app) target(ctx context.Context, cmd *cobra.Command) (*models.Learner, *models.Deck, error) {
	l, err := a.learner(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	d, err := a.deck(ctx, cmd, l)
	if err != nil {
		return nil, nil, err
	}
	return l, d, nil
}

// intFlag returns a pointer to the flag value when it was given.
func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	n, _ := cmd.Flags().GetInt(name)
	return &n
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Print the next batch of cards to study",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		req := study.BatchRequest{
			LearnerID:        l.ID,
			DeckID:           d.ID,
			MaxNewPerDay:     &l.MaxNewPerDay,
			MaxReviewsPerDay: &l.MaxReviewsPerDay,
		}
		req.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("new-ratio") {
			r, _ := cmd.Flags().GetFloat64("new-ratio")
			req.NewRatio = &r
		}
		if n := intFlag(cmd, "max-new"); n != nil {
			req.MaxNewPerDay = n
		}
		if n := intFlag(cmd, "max-reviews"); n != nil {
			req.MaxReviewsPerDay = n
		}
		batch, err := a.engine.BuildNextBatch(ctx, req, time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), batch)
	}),
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print today's study plan",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("order")
		order, ok := study.ParseOrder(name)
		if !ok {
			return apperr.Invalid("unknown order %q, want due or weakness", name)
		}
		plan, err := a.engine.BuildTodayPlan(ctx, study.PlanRequest{
			LearnerID: l.ID,
			DeckID:    d.ID,
			Capacity:  intFlag(cmd, "capacity"),
			NewTarget: intFlag(cmd, "new-target"),
			Threshold: intFlag(cmd, "threshold"),
			Order:     order,
		}, time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), plan)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the queue counters of a deck",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, d, err := a.target(ctx, cmd)
		if err != nil {
			return err
		}
		status, err := a.engine.BuildStudyStatus(ctx, l.ID, d.ID, &study.Quotas{
			MaxNewPerDay:     l.MaxNewPerDay,
			MaxReviewsPerDay: l.MaxReviewsPerDay,
		}, time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), status)
	}),
}

var answerCmd = &cobra.Command{
	Use:   "answer <card-id>",
	Short: "Record an answer to a card",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		cardID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return apperr.Invalid("card id %q is not a number", args[0])
		}
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		again, _ := cmd.Flags().GetBool("again")
		res, err := a.engine.ApplyAnswer(ctx, study.Answer{
			LearnerID: l.ID,
			CardID:    cardID,
			Learned:   !again,
			Quality:   intFlag(cmd, "quality"),
		}, time.Now())
		if err != nil {
			return errors.WithMessagef(err, "answer card %d", cardID)
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

func init() {
	f := nextCmd.Flags()
	f.Int("limit", 0, "Batch size (default from config)")
	f.Float64("new-ratio", 0, "Share of the batch for new cards, 0-1")
	f.Int("max-new", 0, "New cards allowed today (default: learner setting)")
	f.Int("max-reviews", 0, "Reviews allowed today (default: learner setting)")

	f = planCmd.Flags()
	f.Int("capacity", 0, "Cards for the day (default: learner daily target)")
	f.Int("new-target", 0, "New cards for the day (default: learner setting)")
	f.Int("threshold", 0, "Due backlog that pauses new cards (default from config)")
	f.String("order", "due", "Review order: due or weakness")

	f = answerCmd.Flags()
	f.Bool("again", false, "The card was not remembered")
	f.Int("quality", 0, "SM-2 answer quality, 0-5")
}
