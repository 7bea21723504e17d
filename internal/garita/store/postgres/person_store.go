package postgres

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

func ensurePerson(ctx context.Context, q queryer, dni string, nowMs int64) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO people (dni, name, category, created_at_ms, updated_at_ms)
		VALUES ($1, '', $2, $3, $3)
		ON CONFLICT (dni) DO NOTHING
	`, dni, string(model.CategoryWorker), nowMs); err != nil {
		return fmt.Errorf("ensure person %s: %w", dni, err)
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
		return model.Person{}, fmt.Errorf("ensure person: dni is required")
	}
	if p.Category == "" {
		p.Category = model.CategoryWorker
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	ms := toMs(p.CreatedAt)

	// Fills the name of a row created implicitly by a movement, never
	// overwrites a known one.
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO people (dni, name, category, created_at_ms, updated_at_ms)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (dni) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at_ms = EXCLUDED.updated_at_ms
		WHERE people.name = '' AND EXCLUDED.name <> ''
	`, p.DNI, p.Name, string(p.Category), ms); err != nil {
		return model.Person{}, fmt.Errorf("ensure person: %w", err)
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
		WHERE dni = $1
	`, dni).Scan(&p.DNI, &p.Name, &category, &createdMs, &updMs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, store.ErrNotFound
	}
	if err != nil {
		return model.Person{}, fmt.Errorf("get person: %w", err)
	}
	p.Category = model.Category(category)
	p.CreatedAt = fromMs(createdMs)
	p.UpdatedAt = fromMs(updMs)
	return p, nil
}

func (t *txStore) RenamePerson(ctx context.Context, dni, name string, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE people SET name = $1, updated_at_ms = $2
		WHERE dni = $3
	`, name, toMs(at), dni)
	if err != nil {
		return fmt.Errorf("rename person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename person rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
