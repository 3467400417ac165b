package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/srsbot/internal/config"
	"github.com/example/srsbot/internal/database"
	"github.com/example/srsbot/internal/excel"
	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/internal/progress"
	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:          "srsbot",
	Short:        "Spaced-repetition flashcards",
	Long:         "srsbot schedules flashcard reviews on a fixed ladder and serves them through Telegram or the command line.",
	SilenceUsage: true,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env", ".env", "Path to an env file")
	flags.String("db", "", "Database DSN or SQLite path (overrides DATABASE_URL)")
	flags.String("driver", "", "Database driver: sqlite or postgres (overrides DB_TYPE)")
	flags.String("log-mode", "", "Log mode: dev or prod (overrides LOG_MODE)")
	flags.StringP("learner", "l", "", "Learner username")
	flags.StringP("deck", "d", "", "Deck name")

	_ = v.BindPFlag("DATABASE_URL", flags.Lookup("db"))
	_ = v.BindPFlag("DB_TYPE", flags.Lookup("driver"))
	_ = v.BindPFlag("LOG_MODE", flags.Lookup("log-mode"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(learnerCmd)
	rootCmd.AddCommand(deckCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(progressCmd)
}

// app is everything a command needs, built from configuration.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *database.Store
	engine   *study.Service
	history  *progress.Service
	importer *excel.Importer
}

func newApp(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(v, envFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.DBType, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	store := database.NewStore(db)
	engine := study.NewService(store, store, store, cfg.Policies(), cfg.Study(), log)
	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		engine:   engine,
		history:  progress.NewService(store, engine, cfg.Location, log),
		importer: excel.NewImporter(store, log),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
	a.log.Sync()
}

// learner resolves the --learner flag.
func (a *app) learner(ctx context.Context, cmd *cobra.Command) (*models.Learner, error) {
	name, _ := cmd.Flags().GetString("learner")
	return a.store.LearnerByUsername(ctx, name)
}

// deck resolves the --deck flag among the learner's decks.
func (a *app) deck(ctx context.Context, cmd *cobra.Command, learner *models.Learner) (*models.Deck, error) {
	name, _ := cmd.Flags().GetString("deck")
	return a.store.DeckByName(ctx, learner.ID, name)
}

// withApp wraps a command body with application setup and teardown.
func withApp(run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), cmd, a, args)
	}
}

func printJSON(w io.Writer, val interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}
