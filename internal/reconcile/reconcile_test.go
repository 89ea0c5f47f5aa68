package reconcile

import (
	"errors"
	"testing"

	"github.com/cinebook/seatsync/internal/model"
)

func pos(row, col int) model.SeatPosition {
	return model.SeatPosition{Row: row, Column: col}
}

func allAvailable(rows, cols int) model.SeatGrid {
	return model.NewSeatGrid(rows, cols, model.SeatAvailable)
}

func TestToggleSelectsAvailableSeat(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(5, 5)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if !r.Toggle(pos(1, 1)) {
		t.Fatal("expected toggle to select an available seat")
	}
	if !r.Selected(pos(1, 1)) {
		t.Error("seat (1,1) should be selected")
	}

	// Toggling again removes it.
	if !r.Toggle(pos(1, 1)) {
		t.Fatal("expected toggle to deselect")
	}
	if r.Selected(pos(1, 1)) {
		t.Error("seat (1,1) should no longer be selected")
	}
}

func TestToggleConfirmedSeatIsNoOp(t *testing.T) {
	r := New()
	g := allAvailable(3, 3)
	g.SetStatus(pos(2, 2), model.SeatConfirmed)
	if _, err := r.LoadSnapshot(g); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if r.Toggle(pos(2, 2)) {
		t.Error("toggling a confirmed seat must not change the selection")
	}
	if len(r.Selection()) != 0 {
		t.Errorf("selection should be empty, got %v", r.Selection())
	}
}

func TestToggleBeforeFirstSnapshotIsNoOp(t *testing.T) {
	r := New()
	if r.Toggle(pos(1, 1)) {
		t.Error("toggle before any grid was loaded must be a no-op")
	}
}

func TestToggleOutOfBoundsIsNoOp(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(2, 2)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if r.Toggle(pos(3, 1)) || r.Toggle(pos(0, 1)) {
		t.Error("positions outside the grid must be ignored")
	}
}

func TestHeldSeatCannotBeNewlySelected(t *testing.T) {
	r := New()
	g := allAvailable(2, 2)
	g.SetStatus(pos(1, 2), model.SeatHeld)
	if _, err := r.LoadSnapshot(g); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if r.Toggle(pos(1, 2)) {
		t.Error("a seat held by another user must not be selectable")
	}
}

func TestReconciliationDropsConfirmedSelection(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(5, 5)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r.Toggle(pos(1, 1))
	r.Toggle(pos(1, 2))

	// Another viewer confirms (1,1); the pushed grid reflects it.
	g := allAvailable(5, 5)
	g.SetStatus(pos(1, 1), model.SeatConfirmed)
	dropped, err := r.ApplyDelta(g)
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}

	if len(dropped) != 1 || dropped[0] != pos(1, 1) {
		t.Errorf("expected (1,1) to be dropped, got %v", dropped)
	}
	sel := r.Selection()
	if len(sel) != 1 || sel[0] != pos(1, 2) {
		t.Errorf("selection should reconcile to {(1,2)}, got %v", sel)
	}
}

func TestSelectionSurvivesWhileSeatIsHeld(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(3, 3)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r.Toggle(pos(2, 1))

	// Our own hold marks the seat as held in the next snapshot; the
	// selection must survive that.
	g := allAvailable(3, 3)
	g.SetStatus(pos(2, 1), model.SeatHeld)
	dropped, err := r.LoadSnapshot(g)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(dropped) != 0 {
		t.Errorf("held seat must stay selected, dropped %v", dropped)
	}
	if !r.Selected(pos(2, 1)) {
		t.Error("seat (2,1) should still be selected")
	}
}

func TestSnapshotThenIdenticalDeltaIsIdempotent(t *testing.T) {
	r := New()
	g := allAvailable(4, 4)
	g.SetStatus(pos(3, 3), model.SeatConfirmed)
	if _, err := r.LoadSnapshot(g); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r.Toggle(pos(1, 1))

	before := r.Selection()
	dropped, err := r.ApplyDelta(g)
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if len(dropped) != 0 {
		t.Errorf("identical grid must drop nothing, got %v", dropped)
	}
	after := r.Selection()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("selection changed: %v -> %v", before, after)
	}
	got := r.Grid()
	for rr := 1; rr <= 4; rr++ {
		for cc := 1; cc <= 4; cc++ {
			want, _ := g.StatusAt(pos(rr, cc))
			have, _ := got.StatusAt(pos(rr, cc))
			if want != have {
				t.Errorf("seat (%d,%d): want %s, got %s", rr, cc, want, have)
			}
		}
	}
}

func TestDimensionMismatchIsRejected(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(5, 5)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r.Toggle(pos(1, 1))

	if _, err := r.LoadSnapshot(allAvailable(6, 5)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	// The bad grid must not have been applied.
	if g := r.Grid(); g.Rows != 5 {
		t.Errorf("grid was replaced by a mismatched payload: %dx%d", g.Rows, g.Columns)
	}
	if !r.Selected(pos(1, 1)) {
		t.Error("selection must be untouched by a rejected grid")
	}
}

func TestGridReturnsCopy(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(2, 2)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	g := r.Grid()
	g.SetStatus(pos(1, 1), model.SeatConfirmed)
	status, _ := r.Grid().StatusAt(pos(1, 1))
	if status != model.SeatAvailable {
		t.Error("mutating the returned grid must not affect the reconciler")
	}
}

func TestClearSelection(t *testing.T) {
	r := New()
	if _, err := r.LoadSnapshot(allAvailable(2, 2)); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r.Toggle(pos(1, 1))
	r.Toggle(pos(2, 2))
	r.ClearSelection()
	if len(r.Selection()) != 0 {
		t.Errorf("selection should be empty, got %v", r.Selection())
	}
}
