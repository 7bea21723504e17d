package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
	"github.com/BrandonDHaskell/garita/internal/garita/store"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func appendMove(t *testing.T, s store.Store, dni string, cp model.ControlPointID, d model.Direction, at time.Time) model.MovementID {
	t.Helper()

	id, err := s.AppendMovement(context.Background(), model.Movement{
		DNI: dni, ControlPointID: cp, Direction: d, At: at, Author: "guard-1",
	})
	if err != nil {
		t.Fatalf("AppendMovement: %v", err)
	}
	return id
}

// ═══════════════════════════════════════════════════════════════════════════
// AppendMovement
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_AppendMovement_CreatesPerson(t *testing.T) {
	s, conn := newTestStore(t)

	id := appendMove(t, s, "12345678", 1, model.Entry, base)
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	var name, category string
	err := conn.QueryRow(`SELECT name, category FROM people WHERE dni = ?`, "12345678").Scan(&name, &category)
	if err != nil {
		t.Fatalf("query people: %v", err)
	}
	if name != "" || category != string(model.CategoryWorker) {
		t.Errorf("expected implicit worker with empty name, got %q/%q", name, category)
	}
}

func TestStore_AppendMovement_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendMovement(ctx, model.Movement{
		DNI:            "12345678",
		ControlPointID: 2,
		Direction:      model.Exit,
		At:             base.Add(1500 * time.Millisecond),
		Synthetic:      true,
		Author:         model.SystemAuthor,
	})
	if err != nil {
		t.Fatalf("AppendMovement: %v", err)
	}

	m, err := s.GetMovement(ctx, id)
	if err != nil {
		t.Fatalf("GetMovement: %v", err)
	}
	if !m.Synthetic || m.Author != model.SystemAuthor {
		t.Errorf("expected synthetic system movement, got %+v", m)
	}
	if !m.At.Equal(base.Add(1500 * time.Millisecond)) {
		t.Errorf("expected at=%v, got %v", base.Add(1500*time.Millisecond), m.At)
	}
	if m.Direction != model.Exit || m.ControlPointID != 2 {
		t.Errorf("unexpected movement %+v", m)
	}
}

func TestStore_AppendMovement_UnknownPointRejected(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AppendMovement(context.Background(), model.Movement{
		DNI: "12345678", ControlPointID: 99, Direction: model.Entry, At: base,
	})
	if err == nil {
		t.Fatal("expected foreign key failure for unknown control point")
	}
}

func TestStore_GetMovement_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetMovement(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// LatestMovement
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_LatestMovement_Filters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	appendMove(t, s, "12345678", 1, model.Entry, base)
	appendMove(t, s, "12345678", 2, model.Entry, base.Add(time.Minute))
	appendMove(t, s, "12345678", 2, model.Exit, base.Add(2*time.Minute))
	appendMove(t, s, "87654321", 1, model.Entry, base.Add(3*time.Minute))

	m, err := s.LatestMovement(ctx, store.Latest("12345678"))
	if err != nil {
		t.Fatalf("LatestMovement: %v", err)
	}
	if m == nil || m.ControlPointID != 2 || m.Direction != model.Exit {
		t.Errorf("expected latest exit at point 2, got %+v", m)
	}

	m, err = s.LatestMovement(ctx, store.Latest("12345678").At(1).Going(model.Entry))
	if err != nil {
		t.Fatalf("LatestMovement filtered: %v", err)
	}
	if m == nil || !m.At.Equal(base) {
		t.Errorf("expected gate entry at base, got %+v", m)
	}

	m, err = s.LatestMovement(ctx, store.Latest("12345678").At(1).Going(model.Exit))
	if err != nil {
		t.Fatalf("LatestMovement none: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil when nothing matches, got %+v", m)
	}
}

func TestStore_LatestMovement_TieBreaksOnID(t *testing.T) {
	s, _ := newTestStore(t)

	appendMove(t, s, "12345678", 2, model.Entry, base)
	second := appendMove(t, s, "12345678", 2, model.Entry, base)

	m, err := s.LatestMovement(context.Background(), store.Latest("12345678").At(2))
	if err != nil {
		t.Fatalf("LatestMovement: %v", err)
	}
	if m == nil || m.ID != second {
		t.Fatalf("expected id %d to win the tie, got %+v", second, m)
	}
}

func TestStore_ListMovements_NewestFirst(t *testing.T) {
	s, _ := newTestStore(t)

	appendMove(t, s, "12345678", 1, model.Entry, base)
	appendMove(t, s, "12345678", 2, model.Entry, base.Add(time.Minute))
	appendMove(t, s, "12345678", 2, model.Exit, base.Add(2*time.Minute))

	all, err := s.ListMovements(context.Background(), "12345678", 0)
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(all))
	}
	if !all[0].At.After(all[1].At) || !all[1].At.After(all[2].At) {
		t.Errorf("expected newest first, got %v, %v, %v", all[0].At, all[1].At, all[2].At)
	}

	two, err := s.ListMovements(context.Background(), "12345678", 2)
	if err != nil {
		t.Fatalf("ListMovements limited: %v", err)
	}
	if len(two) != 2 {
		t.Errorf("expected limit 2 to be honoured, got %d", len(two))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// WithinTx
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_WithinTx_ReadYourWritesAndRollback(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.AppendMovement(ctx, model.Movement{
			DNI: "12345678", ControlPointID: 1, Direction: model.Entry, At: base,
		}); err != nil {
			return err
		}
		m, err := tx.LatestMovement(ctx, store.Latest("12345678"))
		if err != nil {
			return err
		}
		if m == nil {
			t.Error("expected to read the movement written in the same tx")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	m, err := s.LatestMovement(ctx, store.Latest("12345678"))
	if err != nil {
		t.Fatalf("LatestMovement: %v", err)
	}
	if m != nil {
		t.Fatalf("expected rollback to discard the movement, got %+v", m)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Detail records
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_DetailLifecycle(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()

	mid := appendMove(t, s, "12345678", 2, model.Entry, base)
	entry := base

	id, err := s.InsertDetail(ctx, model.DetailRecord{
		MovementID: mid,
		DNI:        "12345678",
		Payload:    model.DiningHallVisit{Stay: model.Stay{EntryAt: &entry}, Meal: "lunch"},
		CreatedBy:  "guard-1",
	})
	if err != nil {
		t.Fatalf("InsertDetail: %v", err)
	}

	open, err := s.ListOpenDetails(ctx, "12345678", model.KindDiningHallVisit)
	if err != nil {
		t.Fatalf("ListOpenDetails: %v", err)
	}
	if len(open) != 1 || open[0].ID != id {
		t.Fatalf("expected one open record %d, got %+v", id, open)
	}
	if open[0].EntryAt == nil || !open[0].EntryAt.Equal(entry) {
		t.Errorf("expected mirrored entry_at, got %v", open[0].EntryAt)
	}

	exit := base.Add(40 * time.Minute)
	err = s.ReplaceDetailPayload(ctx, id, store.PayloadUpdate{
		Payload:   model.DiningHallVisit{Stay: model.Stay{EntryAt: &entry, ExitAt: &exit}, Meal: "lunch"},
		UpdatedAt: exit,
		UpdatedBy: "guard-2",
	})
	if err != nil {
		t.Fatalf("ReplaceDetailPayload: %v", err)
	}

	rec, err := s.GetDetail(ctx, id)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if rec.IsOpen() {
		t.Error("expected record to be closed after exit_at is set")
	}
	if rec.UpdatedBy != "guard-2" || rec.CreatedBy != "guard-1" {
		t.Errorf("unexpected audit fields %q/%q", rec.CreatedBy, rec.UpdatedBy)
	}
	visit, ok := rec.Payload.(model.DiningHallVisit)
	if !ok || visit.Meal != "lunch" {
		t.Errorf("expected decoded DiningHallVisit, got %#v", rec.Payload)
	}

	var isOpen int
	if err := conn.QueryRow(`SELECT is_open FROM detail_records WHERE detail_id = ?`, int64(id)).Scan(&isOpen); err != nil {
		t.Fatalf("query is_open: %v", err)
	}
	if isOpen != 0 {
		t.Errorf("expected is_open=0, got %d", isOpen)
	}

	open, err = s.ListOpenDetails(ctx, "12345678", "")
	if err != nil {
		t.Fatalf("ListOpenDetails all kinds: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected no open records, got %d", len(open))
	}
}

func TestStore_Detail_OutingStaysOpenUntilReturn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mid := appendMove(t, s, "12345678", 1, model.Exit, base)
	departed := base

	_, err := s.InsertDetail(ctx, model.DetailRecord{
		MovementID: mid,
		DNI:        "12345678",
		Payload: model.CompanyVehicle{
			Outing: model.Outing{DepartedAt: &departed},
			Plate:  "ABC-123",
			Driver: "R. Quispe",
		},
	})
	if err != nil {
		t.Fatalf("InsertDetail: %v", err)
	}

	open, err := s.ListOpenDetails(ctx, "12345678", model.KindCompanyVehicle)
	if err != nil {
		t.Fatalf("ListOpenDetails: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected the outing to be open, got %d records", len(open))
	}
	if open[0].ExitAt == nil || !open[0].ExitAt.Equal(departed) {
		t.Errorf("expected exit window to mirror departed_at, got %v", open[0].ExitAt)
	}
}

func TestStore_InsertDetail_RequiresMovement(t *testing.T) {
	s, _ := newTestStore(t)
	entry := base

	_, err := s.InsertDetail(context.Background(), model.DetailRecord{
		MovementID: 77,
		DNI:        "12345678",
		Payload:    model.DiningHallVisit{Stay: model.Stay{EntryAt: &entry}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ReplaceDetailPayload_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	entry := base

	err := s.ReplaceDetailPayload(context.Background(), 5, store.PayloadUpdate{
		Payload: model.DiningHallVisit{Stay: model.Stay{EntryAt: &entry}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// People
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_EnsurePerson_FillsNameOfImplicitPerson(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	appendMove(t, s, "12345678", 1, model.Entry, base)

	p, err := s.EnsurePerson(ctx, model.Person{DNI: "12345678", Name: "Ana Flores", Category: model.CategoryVisitor})
	if err != nil {
		t.Fatalf("EnsurePerson: %v", err)
	}
	if p.Name != "Ana Flores" {
		t.Errorf("expected name to be filled, got %q", p.Name)
	}

	// A second call never overwrites an existing name.
	p, err = s.EnsurePerson(ctx, model.Person{DNI: "12345678", Name: "Someone Else"})
	if err != nil {
		t.Fatalf("EnsurePerson again: %v", err)
	}
	if p.Name != "Ana Flores" {
		t.Errorf("expected name to be kept, got %q", p.Name)
	}
}

func TestStore_RenamePerson(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RenamePerson(ctx, "00000000", "Ghost", base); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown person, got %v", err)
	}

	if _, err := s.EnsurePerson(ctx, model.Person{DNI: "12345678", Name: "Ana"}); err != nil {
		t.Fatalf("EnsurePerson: %v", err)
	}
	if err := s.RenamePerson(ctx, "12345678", "Ana Flores", base.Add(time.Hour)); err != nil {
		t.Fatalf("RenamePerson: %v", err)
	}
	p, err := s.GetPerson(ctx, "12345678")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if p.Name != "Ana Flores" || !p.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected person after rename: %+v", p)
	}
}
