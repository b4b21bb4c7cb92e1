// Package migrate applies the embedded SQL schema.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/prospector/internal/data/pgxutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Run applies all SQL migrations embedded in this package. It is safe to call multiple times.
func Run(ctx context.Context, db pgxutil.DB) error {
	if _, err := db.Exec(ctx, createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	files, err := Files()
	if err != nil {
		return err
	}

	logger := slog.Default().With("component", "migrations")
	for _, f := range files {
		version := strings.TrimSuffix(f, ".sql")
		applied, applyErr := applyMigration(ctx, db, f, version)
		if applyErr != nil {
			return applyErr
		}
		if applied {
			logger.InfoContext(ctx, "applied migration", "version", version)
		}
	}
	return nil
}

// Files lists the embedded migration files in apply order.
func Files() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// applyMigration runs one file and records it in the same transaction.
// The version row is locked first so concurrent replicas serialize on it.
func applyMigration(ctx context.Context, db pgxutil.DB, file, version string) (bool, error) {
	body, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", file, err)
	}

	applied := false
	err = pgxutil.WithTx(ctx, db, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		tag, insErr := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`, version)
		if insErr != nil {
			return fmt.Errorf("record migration %s: %w", file, insErr)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, execErr := tx.Exec(ctx, string(body)); execErr != nil {
			return fmt.Errorf("exec migration %s: %w", file, execErr)
		}
		applied = true
		return nil
	}})
	return applied, err
}
