package model

import "fmt"

// SeatStatus is the availability state of a single seat within one
// showtime.  The values mirror the wire format used by the booking
// backend.  A confirmed seat is terminal until an external cancellation
// frees it again; a held seat is provisional and owned by the server,
// which controls its expiry.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "hold"
	SeatConfirmed SeatStatus = "confirmed"
)

// Known reports whether s is one of the statuses the backend is
// allowed to send.  A seat with any other status is treated as a data
// error rather than silently defaulting to available.
func (s SeatStatus) Known() bool {
	switch s {
	case SeatAvailable, SeatHeld, SeatConfirmed:
		return true
	}
	return false
}

// Selectable reports whether a locally selected seat may stay selected
// when the grid shows status s.  A seat the current user tentatively
// picked survives reconciliation only while it is available or merely
// held; a confirmed seat is gone for good.
func (s SeatStatus) Selectable() bool {
	return s == SeatAvailable || s == SeatHeld
}

// SeatPosition addresses one physical seat inside a showtime's fixed
// grid.  Rows and columns are 1-based.  The zero value is not a valid
// position.
//
// Fields:
//  Row    – 1-based row index within the hall.
//  Column – 1-based column index within the row.
type SeatPosition struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Valid reports whether the position has positive coordinates.
func (p SeatPosition) Valid() bool {
	return p.Row > 0 && p.Column > 0
}

func (p SeatPosition) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Column)
}

// Seat is one cell of the availability grid as exchanged with the
// backend: a position plus its current status.
type Seat struct {
	Row    int        `json:"row"`
	Column int        `json:"column"`
	Status SeatStatus `json:"status"`
}

// SeatGrid is the full per-seat status matrix for one showtime.  Its
// dimensions are fixed when the showtime is created and never change
// for the lifetime of a view.  The grid is always derived state: it is
// replaced wholesale by a snapshot or a pushed update, never mutated
// cell by cell on the client.
//
// Fields:
//  Rows    – number of rows in the hall.
//  Columns – number of seats per row.
//  Status  – Status[row-1][column-1] holds the state of that seat.
type SeatGrid struct {
	Rows    int
	Columns int
	Status  [][]SeatStatus
}

// NewSeatGrid builds a rows×columns grid with every seat set to the
// given status.  Used by the harness and by tests to seed showtimes.
func NewSeatGrid(rows, columns int, status SeatStatus) SeatGrid {
	g := SeatGrid{Rows: rows, Columns: columns, Status: make([][]SeatStatus, rows)}
	for r := range g.Status {
		g.Status[r] = make([]SeatStatus, columns)
		for c := range g.Status[r] {
			g.Status[r][c] = status
		}
	}
	return g
}

// StatusAt returns the status of the seat at pos.  The second return
// value is false when pos lies outside the grid.
func (g SeatGrid) StatusAt(pos SeatPosition) (SeatStatus, bool) {
	if pos.Row < 1 || pos.Row > g.Rows || pos.Column < 1 || pos.Column > g.Columns {
		return "", false
	}
	return g.Status[pos.Row-1][pos.Column-1], true
}

// SetStatus updates one seat in place and reports whether pos was
// inside the grid.  Only the harness mutates grids; the client treats
// them as immutable snapshots.
func (g SeatGrid) SetStatus(pos SeatPosition, status SeatStatus) bool {
	if pos.Row < 1 || pos.Row > g.Rows || pos.Column < 1 || pos.Column > g.Columns {
		return false
	}
	g.Status[pos.Row-1][pos.Column-1] = status
	return true
}

// Clone returns a deep copy so the holder can keep reading it while a
// newer grid replaces the original.
func (g SeatGrid) Clone() SeatGrid {
	out := SeatGrid{Rows: g.Rows, Columns: g.Columns, Status: make([][]SeatStatus, len(g.Status))}
	for r := range g.Status {
		out.Status[r] = make([]SeatStatus, len(g.Status[r]))
		copy(out.Status[r], g.Status[r])
	}
	return out
}

// Empty reports whether the grid carries no seats at all, which is the
// state of a fresh view before the first snapshot arrives.
func (g SeatGrid) Empty() bool {
	return g.Rows == 0 || g.Columns == 0
}
