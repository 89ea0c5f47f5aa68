package model

import (
	"fmt"
	"time"
)

// Movie holds the catalog metadata the booking surface displays.  The
// catalog itself is external; these fields are a read-only projection
// of what the backend returns.
//
// Fields:
//  ID          – opaque catalog identifier.
//  Title       – display title.
//  Overview    – short synopsis.
//  PosterPath  – relative path of the poster image.
//  ReleaseDate – release date in YYYY-MM-DD form.
//  VoteAverage – aggregated rating.
//  RuntimeMin  – runtime in minutes, zero when unknown.
type Movie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"posterPath"`
	ReleaseDate string  `json:"releaseDate"`
	VoteAverage float64 `json:"voteAverage"`
	RuntimeMin  int     `json:"runtime,omitempty"`
}

// Showtime is one scheduled screening with its fixed seating
// dimensions.  TotalRows and TotalColumns are immutable for the
// lifetime of the showtime and every seat grid exchanged for it must
// match them.
//
// Fields:
//  ID           – opaque showtime identifier.
//  MovieID      – catalog reference of the movie being shown.
//  Datetime     – when the screening starts.
//  TotalRows    – number of rows in the hall.
//  TotalColumns – number of seats per row.
type Showtime struct {
	ID           string    `json:"id"`
	MovieID      string    `json:"movieId"`
	Datetime     time.Time `json:"datetime"`
	TotalRows    int       `json:"totalRows"`
	TotalColumns int       `json:"totalColumns"`
}

// SeatAvailability is the full availability document for one showtime:
// the showtime metadata plus a row-major matrix of seats.  It is both
// the snapshot response body and the payload pushed on the real-time
// channel; a pushed update is always a complete replacement, never a
// partial diff, so applying one out of order can only cause a redundant
// re-render, not corruption.
type SeatAvailability struct {
	Showtime     Showtime `json:"showtime"`
	Availability [][]Seat `json:"availability"`
}

// Grid converts the wire matrix into a SeatGrid, validating it on the
// way in.  It rejects a matrix whose dimensions disagree with the
// showtime metadata and any seat carrying an unknown status: a gap in
// the data is surfaced instead of being defaulted to available.
func (a SeatAvailability) Grid() (SeatGrid, error) {
	rows, cols := a.Showtime.TotalRows, a.Showtime.TotalColumns
	if rows <= 0 || cols <= 0 {
		return SeatGrid{}, fmt.Errorf("showtime %s: invalid dimensions %dx%d", a.Showtime.ID, rows, cols)
	}
	if len(a.Availability) != rows {
		return SeatGrid{}, fmt.Errorf("showtime %s: expected %d rows, got %d", a.Showtime.ID, rows, len(a.Availability))
	}
	g := SeatGrid{Rows: rows, Columns: cols, Status: make([][]SeatStatus, rows)}
	for r, row := range a.Availability {
		if len(row) != cols {
			return SeatGrid{}, fmt.Errorf("showtime %s: row %d has %d seats, expected %d", a.Showtime.ID, r+1, len(row), cols)
		}
		g.Status[r] = make([]SeatStatus, cols)
		for c, seat := range row {
			if !seat.Status.Known() {
				return SeatGrid{}, fmt.Errorf("showtime %s: seat (%d,%d) has unknown status %q", a.Showtime.ID, r+1, c+1, seat.Status)
			}
			g.Status[r][c] = seat.Status
		}
	}
	return g, nil
}

// AvailabilityFromGrid builds the wire document for a grid.  The
// harness uses it to answer snapshot requests and to publish updates.
func AvailabilityFromGrid(st Showtime, g SeatGrid) SeatAvailability {
	rows := make([][]Seat, g.Rows)
	for r := 0; r < g.Rows; r++ {
		rows[r] = make([]Seat, g.Columns)
		for c := 0; c < g.Columns; c++ {
			rows[r][c] = Seat{Row: r + 1, Column: c + 1, Status: g.Status[r][c]}
		}
	}
	return SeatAvailability{Showtime: st, Availability: rows}
}
