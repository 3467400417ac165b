package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/bot"
	"github.com/example/srsbot/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the reminder scheduler",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		api, err := bot.Connect(a.cfg.TelegramToken)
		if err != nil {
			return err
		}
		b := bot.New(api, bot.Deps{
			Store:    a.store,
			Engine:   a.engine,
			History:  a.history,
			Importer: a.importer,
		}, bot.DefaultConfig(), a.log)

		reminders := scheduler.New(a.store, b, scheduler.Config{
			StartHour:     a.cfg.NotificationStartHour,
			EndHour:       a.cfg.NotificationEndHour,
			Location:      a.cfg.Location,
			RatePerSecond: a.cfg.ReminderRatePerSecond,
		}, a.log)
		if err := reminders.Start(ctx); err != nil {
			return err
		}
		defer reminders.Stop()

		a.log.Info("Bot started", "timezone", a.cfg.Location.String(), "policy", a.cfg.DefaultPolicy)
		b.Serve(ctx, api)
		a.log.Info("Bot stopped")
		return nil
	}),
}
