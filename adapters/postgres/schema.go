package postgres

import (
	"context"
	"fmt"
	"log"

	"numcmc/domain/core"

	"github.com/jmoiron/sqlx"
)

// migration is one versioned schema step
type migration struct {
	version string
	sql     string
}

// chain samples live in one table per chain; metadata tables are shared and
// keyed by chain table name
var migrations = []migration{
	{"001", `
		CREATE TABLE IF NOT EXISTS chain_priors (
			chain_table TEXT NOT NULL,
			variable    TEXT NOT NULL,
			prior       TEXT NOT NULL,
			PRIMARY KEY (chain_table, variable)
		)`},
	{"002", `
		CREATE TABLE IF NOT EXISTS chain_surfaces (
			chain_table     TEXT NOT NULL,
			constraint_name TEXT NOT NULL,
			x               DOUBLE PRECISION NOT NULL,
			y               DOUBLE PRECISION,
			value           DOUBLE PRECISION NOT NULL
		)`},
	{"003", `
		CREATE TABLE IF NOT EXISTS chain_citation (
			chain_table TEXT PRIMARY KEY,
			citation    TEXT NOT NULL
		)`},
}

// Migrator creates the chain metadata tables
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db}
}

// Up executes all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var versions []string
	if err := m.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, mig := range migrations {
		if applied[mig.version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.version, err)
		}
		log.Printf("[Migrator] Applied migration %s", mig.version)
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)",
		mig.version, checksum(mig.sql)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(sql string) string {
	return core.NewHash([]byte(sql)).String()
}
