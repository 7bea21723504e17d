package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

// SyncControlPoints mirrors the configured catalog into the control_points
// table so ledger rows can reference it. Existing rows are updated in place;
// points missing from the catalog are left alone because old movements still
// point at them.
func SyncControlPoints(ctx context.Context, db *sql.DB, ph Placeholder, points []model.ControlPoint) error {
	if ph == nil {
		ph = QuestionMarks
	}
	now := time.Now().UTC().UnixMilli()

	q := fmt.Sprintf(`
INSERT INTO control_points(control_point_id, name, kind, track_presence, priority, updated_at_ms)
VALUES (%s, %s, %s, %s, %s, %s)
ON CONFLICT(control_point_id) DO UPDATE SET
  name           = excluded.name,
  kind           = excluded.kind,
  track_presence = excluded.track_presence,
  priority       = excluded.priority,
  updated_at_ms  = excluded.updated_at_ms;
`, ph(1), ph(2), ph(3), ph(4), ph(5), ph(6))

	for _, p := range points {
		track := 0
		if p.TrackPresence {
			track = 1
		}
		if _, err := db.ExecContext(ctx, q, int64(p.ID), p.Name, string(p.Kind), track, p.Priority, now); err != nil {
			return fmt.Errorf("sync control point %d: %w", p.ID, err)
		}
	}
	return nil
}

type SeedDevOptions struct {
	// Guards are DNIs pre-registered as guard staff in dev.
	Guards []string
}

// SeedDev inserts a few people so a fresh dev database can be exercised
// from the CLI without going through the identity collaborator.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO people(dni, name, category, created_at_ms, updated_at_ms)
VALUES ('12345678', 'Dev Worker', 'worker', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed people: %w", err)
	}

	for _, dni := range opt.Guards {
		dni = strings.TrimSpace(dni)
		if dni == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO people(dni, name, category, created_at_ms, updated_at_ms)
VALUES (?, '', 'guard', ?, ?)
ON CONFLICT(dni) DO UPDATE SET
  category      = 'guard',
  updated_at_ms = excluded.updated_at_ms;
`, dni, now, now); err != nil {
			return fmt.Errorf("seed guard %s: %w", dni, err)
		}
	}

	return nil
}
