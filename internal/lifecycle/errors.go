package lifecycle

import (
	"errors"
	"fmt"

	"github.com/cinebook/seatsync/internal/model"
)

// The error taxonomy surfaced to the presentation layer.  Every one of
// these is recoverable: the attempt returns to idle (or simply does
// not transition) and the user may try again.  None are fatal to the
// process.
var (
	// ErrEmptySelection is returned by RequestHold when no seats are
	// selected.  No network call is made.
	ErrEmptySelection = errors.New("lifecycle: no seats selected")

	// ErrOperationInProgress is returned when a hold, confirm or
	// cancel request is already in flight, or a hold is already
	// active.  Only one request and one reservation may be in flight
	// per booking session at a time.
	ErrOperationInProgress = errors.New("lifecycle: another operation is in progress")

	// ErrNoActiveReservation is returned by RequestConfirm when there
	// is no held reservation to confirm.
	ErrNoActiveReservation = errors.New("lifecycle: no active reservation")

	// ErrReservationExpiredLocally is returned by RequestConfirm once
	// the local countdown has reached zero.  The server is the true
	// expiry authority, but a confirm is doomed at this point, so the
	// round trip is skipped.
	ErrReservationExpiredLocally = errors.New("lifecycle: hold expired locally")

	// errSuperseded marks a response that arrived after the attempt it
	// belongs to was torn down or reset.  It is never surfaced.
	errSuperseded = errors.New("lifecycle: attempt superseded")
)

// HoldRejectedError reports that the server refused to place a hold,
// typically because another viewer took one of the seats first.
type HoldRejectedError struct {
	Reason      string
	Unavailable []model.SeatPosition
}

func (e *HoldRejectedError) Error() string {
	if len(e.Unavailable) > 0 {
		return fmt.Sprintf("lifecycle: hold rejected: %s (unavailable: %v)", e.Reason, e.Unavailable)
	}
	return "lifecycle: hold rejected: " + e.Reason
}

// ConfirmRejectedError reports that the server refused to confirm a
// hold, typically because it expired server-side before the confirm
// arrived.
type ConfirmRejectedError struct {
	Reason string
}

func (e *ConfirmRejectedError) Error() string {
	return "lifecycle: confirm rejected: " + e.Reason
}
