package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// ensurePerson guarantees a people row exists for dni so that foreign keys
// from movements and detail_records are satisfied. New rows start with an
// empty name; the identity collaborator fills it in through EnsurePerson or
// RenamePerson.
func ensurePerson(ctx context.Context, q queryer, dni string, nowMs int64) error {
	if _, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO people(dni, name, category, created_at_ms, updated_at_ms)
VALUES (?, '', ?, ?, ?);
`, dni, string(model.CategoryWorker), nowMs, nowMs); err != nil {
		return fmt.Errorf("ensurePerson %s: %w", dni, err)
	}
	return nil
}

func (s *Store) EnsurePerson(ctx context.Context, p model.Person) (model.Person, error) {
	var out model.Person
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.EnsurePerson(ctx, p)
		return err
	})
	return out, err
}

func (s *Store) GetPerson(ctx context.Context, dni string) (model.Person, error) {
	return s.reader().GetPerson(ctx, dni)
}

func (s *Store) RenamePerson(ctx context.Context, dni, name string, at time.Time) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.RenamePerson(ctx, dni, name, at)
	})
}

func (t *txStore) EnsurePerson(ctx context.Context, p model.Person) (model.Person, error) {
	p.DNI = strings.TrimSpace(p.DNI)
	if p.DNI == "" {
		return model.Person{}, fmt.Errorf("EnsurePerson: dni is required")
	}
	if p.Category == "" {
		p.Category = model.CategoryWorker
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	ms := toMs(p.CreatedAt)

	if _, err := t.q.ExecContext(ctx, `
INSERT OR IGNORE INTO people(dni, name, category, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, p.DNI, p.Name, string(p.Category), ms, ms); err != nil {
		return model.Person{}, fmt.Errorf("EnsurePerson insert: %w", err)
	}

	// A row created implicitly by a movement has no name yet.
	if p.Name != "" {
		if _, err := t.q.ExecContext(ctx, `
UPDATE people SET name = ?, updated_at_ms = ?
WHERE dni = ? AND name = '';
`, p.Name, ms, p.DNI); err != nil {
			return model.Person{}, fmt.Errorf("EnsurePerson fill name: %w", err)
		}
	}

	return t.GetPerson(ctx, p.DNI)
}

func (t *txStore) GetPerson(ctx context.Context, dni string) (model.Person, error) {
	var (
		p                model.Person
		category         string
		createdMs, updMs int64
	)
	err := t.q.QueryRowContext(ctx, `
SELECT dni, name, category, created_at_ms, updated_at_ms
FROM people
WHERE dni = ?;
`, dni).Scan(&p.DNI, &p.Name, &category, &createdMs, &updMs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, store.ErrNotFound
	}
	if err != nil {
		return model.Person{}, fmt.Errorf("GetPerson: %w", err)
	}
	p.Category = model.Category(category)
	p.CreatedAt = fromMs(createdMs)
	p.UpdatedAt = fromMs(updMs)
	return p, nil
}

func (t *txStore) RenamePerson(ctx context.Context, dni, name string, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `
UPDATE people SET name = ?, updated_at_ms = ?
WHERE dni = ?;
`, name, toMs(at), dni)
	if err != nil {
		return fmt.Errorf("RenamePerson: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
