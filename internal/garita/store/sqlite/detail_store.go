package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

const detailColumns = `detail_id, movement_id, dni, kind, payload, entry_at_ms, exit_at_ms, created_at_ms, created_by, updated_at_ms, updated_by`

func (s *Store) InsertDetail(ctx context.Context, rec model.DetailRecord) (model.DetailID, error) {
	var id model.DetailID
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		id, err = tx.InsertDetail(ctx, rec)
		return err
	})
	return id, err
}

func (s *Store) GetDetail(ctx context.Context, id model.DetailID) (model.DetailRecord, error) {
	return s.reader().GetDetail(ctx, id)
}

func (s *Store) ReplaceDetailPayload(ctx context.Context, id model.DetailID, upd store.PayloadUpdate) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.ReplaceDetailPayload(ctx, id, upd)
	})
}

func (s *Store) ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error) {
	return s.reader().ListOpenDetails(ctx, dni, kind)
}

func (t *txStore) InsertDetail(ctx context.Context, rec model.DetailRecord) (model.DetailID, error) {
	if rec.Payload == nil {
		return 0, fmt.Errorf("InsertDetail: payload is required")
	}

	var exists int
	err := t.q.QueryRowContext(ctx, `SELECT 1 FROM movements WHERE movement_id = ?;`, int64(rec.MovementID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("InsertDetail: movement %d: %w", rec.MovementID, store.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("InsertDetail lookup movement: %w", err)
	}

	rec.SetPayload(rec.Payload)
	raw, err := model.EncodePayload(rec.Payload)
	if err != nil {
		return 0, fmt.Errorf("InsertDetail encode: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = t.now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
		rec.UpdatedBy = rec.CreatedBy
	}

	res, err := t.q.ExecContext(ctx, `
INSERT INTO detail_records(
  movement_id, dni, kind, payload, is_open, entry_at_ms, exit_at_ms,
  created_at_ms, created_by, updated_at_ms, updated_by
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		int64(rec.MovementID), rec.DNI, string(rec.Kind), string(raw), boolInt(rec.IsOpen()),
		nullableMs(rec.EntryAt), nullableMs(rec.ExitAt),
		toMs(rec.CreatedAt), rec.CreatedBy, toMs(rec.UpdatedAt), rec.UpdatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("InsertDetail insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertDetail last id: %w", err)
	}
	return model.DetailID(id), nil
}

func (t *txStore) GetDetail(ctx context.Context, id model.DetailID) (model.DetailRecord, error) {
	row := t.q.QueryRowContext(ctx, `
SELECT `+detailColumns+`
FROM detail_records
WHERE detail_id = ?;
`, int64(id))

	rec, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DetailRecord{}, store.ErrNotFound
	}
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("GetDetail: %w", err)
	}
	return rec, nil
}

func (t *txStore) ReplaceDetailPayload(ctx context.Context, id model.DetailID, upd store.PayloadUpdate) error {
	if upd.Payload == nil {
		return fmt.Errorf("ReplaceDetailPayload: payload is required")
	}
	raw, err := model.EncodePayload(upd.Payload)
	if err != nil {
		return fmt.Errorf("ReplaceDetailPayload encode: %w", err)
	}
	entry, exit := upd.Payload.Window()
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = t.now()
	}

	res, err := t.q.ExecContext(ctx, `
UPDATE detail_records
SET kind          = ?,
    payload       = ?,
    is_open       = ?,
    entry_at_ms   = ?,
    exit_at_ms    = ?,
    updated_at_ms = ?,
    updated_by    = ?
WHERE detail_id = ?;
`,
		string(upd.Payload.Kind()), string(raw), boolInt(!upd.Payload.Closed()),
		nullableMs(entry), nullableMs(exit),
		toMs(upd.UpdatedAt), upd.UpdatedBy, int64(id),
	)
	if err != nil {
		return fmt.Errorf("ReplaceDetailPayload update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ReplaceDetailPayload rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error) {
	query := `
SELECT ` + detailColumns + `
FROM detail_records
WHERE dni = ? AND is_open = 1`
	args := []any{dni}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += `
ORDER BY detail_id DESC;`

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListOpenDetails: %w", err)
	}
	defer rows.Close()

	var out []model.DetailRecord
	for rows.Next() {
		rec, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOpenDetails scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDetail(sc scanner) (model.DetailRecord, error) {
	var (
		rec              model.DetailRecord
		id, movementID   int64
		kind, raw        string
		entryMs, exitMs  sql.NullInt64
		createdMs, updMs int64
	)
	if err := sc.Scan(
		&id, &movementID, &rec.DNI, &kind, &raw, &entryMs, &exitMs,
		&createdMs, &rec.CreatedBy, &updMs, &rec.UpdatedBy,
	); err != nil {
		return model.DetailRecord{}, err
	}

	p, err := model.DecodePayload(model.RecordKind(kind), []byte(raw))
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("detail %d: %w", id, err)
	}
	rec.ID = model.DetailID(id)
	rec.MovementID = model.MovementID(movementID)
	rec.Payload = p
	rec.Kind = p.Kind()
	rec.EntryAt = fromNullMs(entryMs)
	rec.ExitAt = fromNullMs(exitMs)
	rec.CreatedAt = fromMs(createdMs)
	rec.UpdatedAt = fromMs(updMs)
	return rec, nil
}
