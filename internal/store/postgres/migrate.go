package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migration struct {
	version string
	upSQL   string
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(migrationFiles, "migrations/"+e.Name())
		if err != nil {
			return nil, err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, migration{version: strings.TrimSuffix(e.Name(), ".sql"), upSQL: upSQL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Migrate applies pending migrations, one transaction each, and returns the versions it applied.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	if _, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`).Exec(ctx); err != nil {
		return nil, err
	}

	migs, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migs {
		var done bool
		if err := db.NewRaw("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(ctx, &done); err != nil {
			return applied, err
		}
		if done {
			continue
		}
		err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := execStatements(ctx, tx, m.upSQL); err != nil {
				return err
			}
			_, err := tx.NewRaw("INSERT INTO schema_migrations (version) VALUES (?)", m.version).Exec(ctx)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.version, err)
		}
		applied = append(applied, m.version)
	}
	return applied, nil
}

func execStatements(ctx context.Context, db bun.IDB, sql string) error {
	for _, stmt := range splitSQLStatements(sql) {
		if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
