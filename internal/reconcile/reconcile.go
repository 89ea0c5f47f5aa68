// Package reconcile owns the local view of one showtime's seat grid
// together with the user's tentative seat selection.  It is the single
// source of truth for what the user can click right now: snapshots
// pulled from the backend and updates pushed over the real-time channel
// both land here, and the selection is re-validated against every new
// grid.  The package performs no I/O and never blocks.
package reconcile

import (
	"errors"
	"sort"
	"sync"

	"github.com/cinebook/seatsync/internal/model"
)

// ErrDimensionMismatch is returned when an incoming grid does not match
// the dimensions the view was opened with.  Showtime dimensions are
// fixed at creation, so a mismatch means the payload belongs to a
// different showtime or is corrupt, and it is discarded.
var ErrDimensionMismatch = errors.New("reconcile: grid dimensions do not match showtime")

// Reconciler merges three inputs into one coherent view: the last
// applied seat grid, full-grid replacements arriving from snapshot
// polls and pushed updates, and the set of seats the user has selected
// but not yet committed.  Snapshots and pushed updates are applied
// last-wins; because every payload is a complete grid, out-of-order
// arrival cannot corrupt state.
//
// All methods are safe for concurrent use.  The selection is owned
// exclusively by the local session and is never shared.
type Reconciler struct {
	mu        sync.Mutex
	grid      model.SeatGrid
	selection map[model.SeatPosition]struct{}
}

// New returns a Reconciler with no grid yet.  Seats cannot be selected
// until the first snapshot is applied.
func New() *Reconciler {
	return &Reconciler{selection: make(map[model.SeatPosition]struct{})}
}

// LoadSnapshot replaces the grid with a freshly pulled snapshot and
// re-validates the selection.  It returns the positions that were
// dropped because another viewer confirmed them in the meantime.
func (r *Reconciler) LoadSnapshot(g model.SeatGrid) ([]model.SeatPosition, error) {
	return r.replace(g)
}

// ApplyDelta replaces the grid with a payload pushed over the
// real-time channel.  Despite the name the payload is a complete grid,
// so the semantics are identical to LoadSnapshot; the two entry points
// exist so callers can attribute the update to its source.
func (r *Reconciler) ApplyDelta(g model.SeatGrid) ([]model.SeatPosition, error) {
	return r.replace(g)
}

func (r *Reconciler) replace(g model.SeatGrid) ([]model.SeatPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.grid.Empty() && (g.Rows != r.grid.Rows || g.Columns != r.grid.Columns) {
		return nil, ErrDimensionMismatch
	}
	r.grid = g.Clone()

	// Reconciliation rule: a selected seat survives only while the new
	// grid still shows it as available or held.  Anything else means a
	// concurrent viewer won the seat, and it is silently deselected --
	// the user has not committed yet, so this is not an error.
	var dropped []model.SeatPosition
	for pos := range r.selection {
		status, ok := r.grid.StatusAt(pos)
		if !ok || !status.Selectable() {
			delete(r.selection, pos)
			dropped = append(dropped, pos)
		}
	}
	sortPositions(dropped)
	return dropped, nil
}

// Toggle flips membership of pos in the selection.  A seat that is
// already selected is removed regardless of its current status; an
// unselected seat is added only while the grid shows it available.
// Clicks on confirmed seats, positions outside the grid, or before the
// first snapshot are silent no-ops.  Toggle reports whether the
// selection changed.
func (r *Reconciler) Toggle(pos model.SeatPosition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.grid.StatusAt(pos)
	if !ok {
		return false
	}
	if _, selected := r.selection[pos]; selected {
		delete(r.selection, pos)
		return true
	}
	if status != model.SeatAvailable {
		return false
	}
	r.selection[pos] = struct{}{}
	return true
}

// ClearSelection empties the selection.  Called when an attempt
// settles (confirmed or abandoned) so the next attempt starts clean.
func (r *Reconciler) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = make(map[model.SeatPosition]struct{})
}

// Grid returns a copy of the last applied grid.  The copy is safe to
// read while newer grids arrive.
func (r *Reconciler) Grid() model.SeatGrid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid.Clone()
}

// Selection returns the selected positions in row-major order.
func (r *Reconciler) Selection() []model.SeatPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SeatPosition, 0, len(r.selection))
	for pos := range r.selection {
		out = append(out, pos)
	}
	sortPositions(out)
	return out
}

// Selected reports whether pos is currently selected.
func (r *Reconciler) Selected(pos model.SeatPosition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.selection[pos]
	return ok
}

func sortPositions(ps []model.SeatPosition) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Row != ps[j].Row {
			return ps[i].Row < ps[j].Row
		}
		return ps[i].Column < ps[j].Column
	})
}
