package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS processed_articles (
		external_id     TEXT PRIMARY KEY,
		run_id          TEXT NOT NULL,
		title           TEXT NOT NULL,
		url             TEXT NOT NULL,
		final_consensus INTEGER NOT NULL,
		verified        BOOLEAN NOT NULL,
		status          TEXT NOT NULL,
		report          TEXT NOT NULL,
		processed_at    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS processed_articles_processed_at ON processed_articles (processed_at)`,
	`CREATE TABLE IF NOT EXISTS rationale_usage (
		evaluator        TEXT PRIMARY KEY,
		uses             INTEGER NOT NULL,
		total_engagement INTEGER NOT NULL
	)`,
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database alive across calls
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func builder(driver string) sq.StatementBuilderType {
	if driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}
