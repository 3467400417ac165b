package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Supported DB_TYPE values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connect opens the database for driver ("sqlite" or "postgres") and creates
// missing tables.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, errors.Wrap(err, "failed to create data directory")
			}
		}
		db, err = sqlx.Connect("sqlite3", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to database")
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case DriverPostgres:
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to database")
		}
	default:
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type dialect struct {
	id        string
	timestamp string
	float     string
}

func dialectOf(db *sqlx.DB) dialect {
	if db.DriverName() == "postgres" {
		return dialect{id: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ", float: "DOUBLE PRECISION"}
	}
	return dialect{id: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "TIMESTAMP", float: "REAL"}
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	d := dialectOf(db)
	tables := []struct {
		name string
		ddl  string
	}{
		{"learners", `
			CREATE TABLE IF NOT EXISTS learners (
				id ` + d.id + `,
				telegram_id BIGINT UNIQUE,
				username TEXT NOT NULL DEFAULT '',
				daily_card_target INTEGER NOT NULL DEFAULT 20,
				daily_new_target INTEGER NOT NULL DEFAULT 7,
				max_new_per_day INTEGER NOT NULL DEFAULT 10,
				max_reviews_per_day INTEGER NOT NULL DEFAULT 100,
				notification_enabled BOOLEAN NOT NULL DEFAULT true,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				created_at ` + d.timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"decks", `
			CREATE TABLE IF NOT EXISTS decks (
				id ` + d.id + `,
				owner_id BIGINT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				policy TEXT NOT NULL DEFAULT 'ladder',
				created_at ` + d.timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(owner_id, name)
			)`},
		{"deck_members", `
			CREATE TABLE IF NOT EXISTS deck_members (
				deck_id BIGINT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				learner_id BIGINT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
				role TEXT NOT NULL DEFAULT 'viewer',
				PRIMARY KEY (deck_id, learner_id)
			)`},
		{"cards", `
			CREATE TABLE IF NOT EXISTS cards (
				id ` + d.id + `,
				deck_id BIGINT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				front TEXT NOT NULL,
				back TEXT NOT NULL,
				example TEXT NOT NULL DEFAULT '',
				created_at ` + d.timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(deck_id, front)
			)`},
		{"progress", `
			CREATE TABLE IF NOT EXISTS progress (
				id ` + d.id + `,
				learner_id BIGINT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
				card_id BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
				status TEXT NOT NULL DEFAULT 'new',
				stage INTEGER,
				due_at ` + d.timestamp + `,
				last_reviewed_at ` + d.timestamp + `,
				times_seen INTEGER NOT NULL DEFAULT 0,
				times_correct INTEGER NOT NULL DEFAULT 0,
				policy TEXT NOT NULL DEFAULT '',
				ease_factor ` + d.float + ` NOT NULL DEFAULT 0,
				interval_days INTEGER NOT NULL DEFAULT 0,
				repetitions INTEGER NOT NULL DEFAULT 0,
				created_at ` + d.timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at ` + d.timestamp + ` NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(learner_id, card_id)
			)`},
		{"progress index", `
			CREATE INDEX IF NOT EXISTS idx_progress_due ON progress (learner_id, status, due_at)`},
		{"daily_progress", `
			CREATE TABLE IF NOT EXISTS daily_progress (
				id ` + d.id + `,
				learner_id BIGINT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
				deck_id BIGINT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
				day TEXT NOT NULL,
				items_done INTEGER NOT NULL DEFAULT 0,
				reviews_done INTEGER NOT NULL DEFAULT 0,
				new_done INTEGER NOT NULL DEFAULT 0,
				UNIQUE(learner_id, deck_id, day)
			)`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return errors.Wrapf(err, "failed to create %s", t.name)
		}
	}
	return nil
}
