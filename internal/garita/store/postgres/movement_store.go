package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

const movementColumns = `movement_id, dni, control_point_id, direction, at_ms, synthetic, author, recorded_at_ms`

func (s *Store) AppendMovement(ctx context.Context, m model.Movement) (model.MovementID, error) {
	var id model.MovementID
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		id, err = tx.AppendMovement(ctx, m)
		return err
	})
	return id, err
}

func (s *Store) LatestMovement(ctx context.Context, q store.LatestQuery) (*model.Movement, error) {
	return s.reader().LatestMovement(ctx, q)
}

func (s *Store) GetMovement(ctx context.Context, id model.MovementID) (model.Movement, error) {
	return s.reader().GetMovement(ctx, id)
}

func (s *Store) ListMovements(ctx context.Context, dni string, limit int) ([]model.Movement, error) {
	return s.reader().ListMovements(ctx, dni, limit)
}

func (t *txStore) AppendMovement(ctx context.Context, m model.Movement) (model.MovementID, error) {
	if m.DNI == "" {
		return 0, fmt.Errorf("append movement: dni is required")
	}
	if err := t.lockPerson(ctx, m.DNI); err != nil {
		return 0, err
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = t.now()
	}
	nowMs := toMs(m.RecordedAt)

	if err := ensurePerson(ctx, t.q, m.DNI, nowMs); err != nil {
		return 0, err
	}

	var id int64
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO movements (dni, control_point_id, direction, at_ms, synthetic, author, recorded_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING movement_id
	`, m.DNI, int64(m.ControlPointID), string(m.Direction), toMs(m.At), m.Synthetic, m.Author, nowMs).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append movement: %w", err)
	}
	return model.MovementID(id), nil
}

func (t *txStore) LatestMovement(ctx context.Context, q store.LatestQuery) (*model.Movement, error) {
	if err := t.lockPerson(ctx, q.DNI); err != nil {
		return nil, err
	}

	where := []string{"dni = $1"}
	args := []any{q.DNI}
	if q.ControlPointID != nil {
		args = append(args, int64(*q.ControlPointID))
		where = append(where, "control_point_id = $"+strconv.Itoa(len(args)))
	}
	if q.Direction != nil {
		args = append(args, string(*q.Direction))
		where = append(where, "direction = $"+strconv.Itoa(len(args)))
	}

	row := t.q.QueryRowContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY at_ms DESC, movement_id DESC
		LIMIT 1
	`, args...)

	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest movement: %w", err)
	}
	return &m, nil
}

func (t *txStore) GetMovement(ctx context.Context, id model.MovementID) (model.Movement, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE movement_id = $1
	`, int64(id))

	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movement{}, store.ErrNotFound
	}
	if err != nil {
		return model.Movement{}, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

func (t *txStore) ListMovements(ctx context.Context, dni string, limit int) ([]model.Movement, error) {
	// LIMIT NULL means no limit in PostgreSQL.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE dni = $1
		ORDER BY at_ms DESC, movement_id DESC
		LIMIT $2
	`, dni, lim)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("list movements scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(sc scanner) (model.Movement, error) {
	var (
		m           model.Movement
		id, cp      int64
		direction   string
		atMs, recMs int64
	)
	if err := sc.Scan(&id, &m.DNI, &cp, &direction, &atMs, &m.Synthetic, &m.Author, &recMs); err != nil {
		return model.Movement{}, err
	}
	m.ID = model.MovementID(id)
	m.ControlPointID = model.ControlPointID(cp)
	m.Direction = model.Direction(direction)
	m.At = fromMs(atMs)
	m.RecordedAt = fromMs(recMs)
	return m, nil
}
