package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
)

// migrationLockKey serialises migrations between serve and mailbridge
// processes starting against the same database.
const migrationLockKey = 727_001

var migrationName = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.(up|down)\.sql$`)

// Migration is one versioned schema change on disk.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// LoadMigrations reads NNNN_name.up.sql / .down.sql pairs from dir, ordered
// by version. Files that do not follow the naming scheme are ignored.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	byVersion := map[string]*Migration{}
	for _, entry := range entries {
		match := migrationName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		m := byVersion[match[1]]
		if m == nil {
			m = &Migration{Version: match[1]}
			byVersion[match[1]] = m
		}
		path := filepath.Join(dir, entry.Name())
		switch match[2] {
		case "up":
			if m.Up != "" {
				return nil, fmt.Errorf("duplicate up migration for version %s", m.Version)
			}
			m.Up = path
		case "down":
			if m.Down != "" {
				return nil, fmt.Errorf("duplicate down migration for version %s", m.Version)
			}
			m.Down = path
		}
	}
	if len(byVersion) == 0 {
		return nil, fmt.Errorf("no migrations found in %s", dir)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("version %s has no up migration", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return out, nil
}

// ApplyMigrations runs every pending up migration in version order, each in
// its own transaction, and returns the files it applied. Concurrent callers
// wait on an advisory lock.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) ([]string, error) {
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve migration connection: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0)
	for _, m := range migrations {
		version := filepath.Base(m.Up)
		if done[version] {
			continue
		}
		if err := applyOne(ctx, conn, version, m.Up); err != nil {
			return applied, err
		}
		applied = append(applied, version)
	}
	return applied, nil
}

// PendingMigrations lists up migrations that have not been applied yet.
func PendingMigrations(ctx context.Context, db *sql.DB, migrationsDir string) ([]string, error) {
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve migration connection: %w", err)
	}
	defer conn.Close()
	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}
	pending := make([]string, 0)
	for _, m := range migrations {
		if version := filepath.Base(m.Up); !done[version] {
			pending = append(pending, version)
		}
	}
	return pending, nil
}

func applyOne(ctx context.Context, conn *sql.Conn, version, path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	done := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		done[version] = true
	}
	return done, rows.Err()
}
