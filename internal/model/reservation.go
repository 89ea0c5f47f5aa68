package model

import "time"

// ReservationStatus is the server-side state of a reservation.  A hold
// is time-boxed and pending confirmation; a confirmed reservation is a
// permanent booking.
type ReservationStatus string

const (
	ReservationHold      ReservationStatus = "hold"
	ReservationConfirmed ReservationStatus = "confirmed"
)

// Reservation is the server-owned record of one booking attempt.  The
// client keeps at most one active reservation per booking session as a
// read-through cache; the server alone decides whether a hold or a
// confirmation succeeds, and the server's expiry is authoritative.
//
// Fields:
//  ID         – opaque identifier issued by the server on hold.
//  ShowtimeID – the showtime the seats belong to.
//  Seats      – the positions covered by this reservation.
//  Status     – hold or confirmed.
//  ExpiresAt  – when a hold lapses server-side; nil once confirmed.
//  CreatedAt  – when the hold was created.
type Reservation struct {
	ID         string            `json:"id"`
	ShowtimeID string            `json:"showtimeId"`
	Seats      []SeatPosition    `json:"seats"`
	Status     ReservationStatus `json:"status"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}
