package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// QuestionMarks is the SQLite placeholder style.
func QuestionMarks(int) string { return "?" }

// DollarNumbers is the PostgreSQL placeholder style.
func DollarNumbers(n int) string { return "$" + strconv.Itoa(n) }

// Migrations describes a directory of NNNN_name.sql files applied in version
// order and tracked in schema_migrations.
type Migrations struct {
	FS          fs.FS
	Dir         string
	Placeholder Placeholder
}

type migration struct {
	version int
	name    string
	sql     string
}

// Migrate applies the embedded SQLite migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	return Migrations{FS: migrationsFS, Dir: "migrations", Placeholder: QuestionMarks}.Apply(ctx, db)
}

func (m Migrations) Apply(ctx context.Context, db *sql.DB) error {
	ph := m.Placeholder
	if ph == nil {
		ph = QuestionMarks
	}

	// Tracking table lives outside the versioned files so it always exists.
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ms BIGINT NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	ms, err := m.load()
	if err != nil {
		return err
	}

	for _, mg := range ms {
		applied, err := isApplied(ctx, db, ph, mg.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if _, err := tx.ExecContext(ctx, mg.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", mg.name, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO schema_migrations(version, applied_at_ms) VALUES(%s, %s);", ph(1), ph(2)),
			mg.version, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", mg.name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", mg.name, err)
		}
	}

	return nil
}

func (m Migrations) load() ([]migration, error) {
	entries, err := fs.ReadDir(m.FS, m.Dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var ms []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		v, err := parseVersion(e.Name()) // 0001_init.sql -> 1
		if err != nil {
			return nil, err
		}
		b, err := fs.ReadFile(m.FS, path.Join(m.Dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		ms = append(ms, migration{version: v, name: e.Name(), sql: string(b)})
	}

	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
	return ms, nil
}

func isApplied(ctx context.Context, db *sql.DB, ph Placeholder, version int) (bool, error) {
	var v int
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT version FROM schema_migrations WHERE version = %s;", ph(1)), version,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return true, nil
}

func parseVersion(filename string) (int, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("bad migration filename: %s", filename)
	}
	s := strings.TrimLeft(prefix, "0")
	if s == "" {
		s = "0"
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad migration version %s: %w", filename, err)
	}
	return v, nil
}
