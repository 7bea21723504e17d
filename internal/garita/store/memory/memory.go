package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

// Store is an in-memory implementation of store.Store intended for tests and
// dev environments. Transactions are fully serialized and work on a copy of
// the state that replaces the committed one only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{state: s.state.clone(), now: s.now}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.state = t.state
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Movements returns a copy of every committed movement in append order.
// Test-only helper.
func (s *Store) Movements() []model.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Movement, len(s.state.movements))
	copy(out, s.state.movements)
	return out
}

// ── Store methods outside an explicit transaction ────────────────────────────

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
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).LatestMovement(ctx, q)
}

func (s *Store) GetMovement(ctx context.Context, id model.MovementID) (model.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).GetMovement(ctx, id)
}

func (s *Store) ListMovements(ctx context.Context, dni string, limit int) ([]model.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).ListMovements(ctx, dni, limit)
}

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
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).GetDetail(ctx, id)
}

func (s *Store) ReplaceDetailPayload(ctx context.Context, id model.DetailID, upd store.PayloadUpdate) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.ReplaceDetailPayload(ctx, id, upd)
	})
}

func (s *Store) ListOpenDetails(ctx context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).ListOpenDetails(ctx, dni, kind)
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
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{state: s.state, now: s.now}).GetPerson(ctx, dni)
}

func (s *Store) RenamePerson(ctx context.Context, dni, name string, at time.Time) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.RenamePerson(ctx, dni, name, at)
	})
}

// ── State ────────────────────────────────────────────────────────────────────

type state struct {
	movements    []model.Movement
	details      map[model.DetailID]model.DetailRecord
	people       map[string]model.Person
	nextMovement model.MovementID
	nextDetail   model.DetailID
}

func newState() *state {
	return &state{
		details: make(map[model.DetailID]model.DetailRecord),
		people:  make(map[string]model.Person),
	}
}

func (st *state) clone() *state {
	c := &state{
		movements:    make([]model.Movement, len(st.movements)),
		details:      make(map[model.DetailID]model.DetailRecord, len(st.details)),
		people:       make(map[string]model.Person, len(st.people)),
		nextMovement: st.nextMovement,
		nextDetail:   st.nextDetail,
	}
	copy(c.movements, st.movements)
	for k, v := range st.details {
		c.details[k] = v
	}
	for k, v := range st.people {
		c.people[k] = v
	}
	return c
}

// txn implements store.Tx over a private copy of the state.
type txn struct {
	state *state
	now   func() time.Time
}

func (t *txn) AppendMovement(_ context.Context, m model.Movement) (model.MovementID, error) {
	if m.DNI == "" {
		return 0, fmt.Errorf("append movement: dni is required")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = t.now()
	}
	if _, ok := t.state.people[m.DNI]; !ok {
		t.state.people[m.DNI] = model.Person{
			DNI:       m.DNI,
			Category:  model.CategoryWorker,
			CreatedAt: m.RecordedAt,
			UpdatedAt: m.RecordedAt,
		}
	}
	t.state.nextMovement++
	m.ID = t.state.nextMovement
	t.state.movements = append(t.state.movements, m)
	return m.ID, nil
}

func (t *txn) LatestMovement(_ context.Context, q store.LatestQuery) (*model.Movement, error) {
	var latest *model.Movement
	for i := range t.state.movements {
		m := t.state.movements[i]
		if !q.Matches(m) {
			continue
		}
		if latest == nil || store.Newer(m, *latest) {
			cp := m
			latest = &cp
		}
	}
	return latest, nil
}

func (t *txn) GetMovement(_ context.Context, id model.MovementID) (model.Movement, error) {
	for _, m := range t.state.movements {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Movement{}, store.ErrNotFound
}

func (t *txn) ListMovements(_ context.Context, dni string, limit int) ([]model.Movement, error) {
	var out []model.Movement
	for _, m := range t.state.movements {
		if m.DNI == dni {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return store.Newer(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *txn) InsertDetail(_ context.Context, rec model.DetailRecord) (model.DetailID, error) {
	if rec.Payload == nil {
		return 0, fmt.Errorf("insert detail: payload is required")
	}
	found := false
	for _, m := range t.state.movements {
		if m.ID == rec.MovementID {
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("insert detail: movement %d: %w", rec.MovementID, store.ErrNotFound)
	}
	rec.SetPayload(rec.Payload)
	t.state.nextDetail++
	rec.ID = t.state.nextDetail
	t.state.details[rec.ID] = rec
	return rec.ID, nil
}

func (t *txn) GetDetail(_ context.Context, id model.DetailID) (model.DetailRecord, error) {
	rec, ok := t.state.details[id]
	if !ok {
		return model.DetailRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (t *txn) ReplaceDetailPayload(_ context.Context, id model.DetailID, upd store.PayloadUpdate) error {
	rec, ok := t.state.details[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.SetPayload(upd.Payload)
	rec.UpdatedAt = upd.UpdatedAt
	rec.UpdatedBy = upd.UpdatedBy
	t.state.details[id] = rec
	return nil
}

func (t *txn) ListOpenDetails(_ context.Context, dni string, kind model.RecordKind) ([]model.DetailRecord, error) {
	var out []model.DetailRecord
	for _, rec := range t.state.details {
		if rec.DNI != dni || !rec.IsOpen() {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *txn) EnsurePerson(_ context.Context, p model.Person) (model.Person, error) {
	p.DNI = strings.TrimSpace(p.DNI)
	if p.DNI == "" {
		return model.Person{}, fmt.Errorf("ensure person: dni is required")
	}
	if existing, ok := t.state.people[p.DNI]; ok {
		// A person created implicitly by a movement has no name yet.
		if existing.Name == "" && p.Name != "" {
			existing.Name = p.Name
			existing.UpdatedAt = t.now()
			t.state.people[p.DNI] = existing
		}
		return existing, nil
	}
	if p.Category == "" {
		p.Category = model.CategoryWorker
	}
	now := t.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	t.state.people[p.DNI] = p
	return p, nil
}

func (t *txn) GetPerson(_ context.Context, dni string) (model.Person, error) {
	p, ok := t.state.people[dni]
	if !ok {
		return model.Person{}, store.ErrNotFound
	}
	return p, nil
}

func (t *txn) RenamePerson(_ context.Context, dni, name string, at time.Time) error {
	p, ok := t.state.people[dni]
	if !ok {
		return store.ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = at
	t.state.people[dni] = p
	return nil
}
