// Package lifecycle drives one user's reservation attempt through the
// hold, confirm, cancel and expiry transitions.  It issues the two
// network actions (hold and confirm) through a narrow BookingAPI
// interface, tracks the local countdown against a monotonic deadline,
// and guarantees that at most one request is in flight at a time.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/api"
	"github.com/cinebook/seatsync/internal/model"
)

// State is the position of the current attempt in the reservation
// state machine.
//
//	Idle -> Holding -> Held -> Confirming -> Confirmed
//	                    |-> Cancelling -> Idle
//	                    |-> Expired
//
// Confirmed and Expired are absorbing for the attempt; a new
// RequestHold starts the next attempt from either of them.
type State string

const (
	StateIdle       State = "idle"
	StateHolding    State = "holding"
	StateHeld       State = "held"
	StateConfirming State = "confirming"
	StateConfirmed  State = "confirmed"
	StateCancelling State = "cancelling"
	StateExpired    State = "expired"
)

// BookingAPI is the slice of the backend client the lifecycle needs.
// *api.Client satisfies it; tests substitute fakes.
type BookingAPI interface {
	HoldSeats(ctx context.Context, showtimeID string, seats []model.SeatPosition) (model.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID string) (model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) error
}

// Lifecycle is the state machine for one booking session against one
// showtime.  Mutation entry points are safe to call concurrently and
// re-enter between a request being issued and its response arriving;
// overlapping requests fail fast with ErrOperationInProgress instead
// of racing.
//
// After every settled hold or confirm outcome the onSettle callback
// fires so the owning session can pull a fresh snapshot; the callback
// runs without the internal lock held.
type Lifecycle struct {
	backend    BookingAPI
	log        *zap.Logger
	showtimeID string
	onSettle   func()

	mu          sync.Mutex
	state       State
	reservation *model.Reservation
	deadline    time.Time
	attempt     uint64
}

// New returns a lifecycle in the idle state.  onSettle may be nil.
func New(backend BookingAPI, showtimeID string, log *zap.Logger, onSettle func()) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{
		backend:    backend,
		log:        log,
		showtimeID: showtimeID,
		onSettle:   onSettle,
		state:      StateIdle,
	}
}

// State returns the current machine state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Busy reports whether a hold, confirm or cancel request is currently
// in flight.  While busy, seat toggling is suspended by the session.
func (l *Lifecycle) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busyLocked()
}

func (l *Lifecycle) busyLocked() bool {
	return l.state == StateHolding || l.state == StateConfirming || l.state == StateCancelling
}

// Reservation returns a copy of the active reservation, or nil when
// the attempt holds none.
func (l *Lifecycle) Reservation() *model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reservation == nil {
		return nil
	}
	res := *l.reservation
	res.Seats = append([]model.SeatPosition(nil), l.reservation.Seats...)
	return &res
}

// Remaining returns how long the current hold has left on the local
// countdown.  This is presentation state derived from a monotonic
// deadline; it is never used for network decisions beyond the local
// fail-fast in RequestConfirm.
func (l *Lifecycle) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateHeld || l.deadline.IsZero() {
		return 0
	}
	if rem := time.Until(l.deadline); rem > 0 {
		return rem
	}
	return 0
}

// RequestHold asks the server to hold the given seats.  It fails fast
// with ErrEmptySelection before any network call when seats is empty,
// and with ErrOperationInProgress while a request is in flight or a
// hold is already active.  On server rejection the attempt returns to
// idle and a *HoldRejectedError carries the server's reason.
func (l *Lifecycle) RequestHold(ctx context.Context, seats []model.SeatPosition) error {
	l.mu.Lock()
	if l.busyLocked() || l.state == StateHeld {
		l.mu.Unlock()
		return ErrOperationInProgress
	}
	if len(seats) == 0 {
		l.mu.Unlock()
		return ErrEmptySelection
	}
	l.state = StateHolding
	l.reservation = nil
	l.deadline = time.Time{}
	gen := l.attempt
	l.mu.Unlock()

	res, err := l.backend.HoldSeats(ctx, l.showtimeID, seats)

	l.mu.Lock()
	if l.attempt != gen || l.state != StateHolding {
		l.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		l.state = StateIdle
		l.mu.Unlock()
		l.settle()
		var rej *api.Error
		if errors.As(err, &rej) {
			l.log.Info("hold rejected", zap.String("showtime", l.showtimeID), zap.String("reason", rej.Message))
			return &HoldRejectedError{Reason: rej.Message, Unavailable: rej.Unavailable}
		}
		l.log.Warn("hold request failed", zap.String("showtime", l.showtimeID), zap.Error(err))
		return err
	}

	l.state = StateHeld
	l.reservation = &res
	if res.ExpiresAt != nil {
		// time.Until against the wall-clock expiry, anchored to the
		// local monotonic clock so later ticks cannot drift.
		l.deadline = time.Now().Add(time.Until(*res.ExpiresAt))
	}
	l.mu.Unlock()
	l.settle()
	l.log.Info("seats held",
		zap.String("showtime", l.showtimeID),
		zap.String("reservation", res.ID),
		zap.Int("seats", len(res.Seats)))
	return nil
}

// RequestConfirm converts the held reservation into a permanent
// booking.  Once the local countdown has run out it fails fast with
// ErrReservationExpiredLocally without contacting the server.  On
// server rejection the attempt returns to idle and a
// *ConfirmRejectedError carries the reason.
func (l *Lifecycle) RequestConfirm(ctx context.Context) error {
	l.mu.Lock()
	if l.busyLocked() {
		l.mu.Unlock()
		return ErrOperationInProgress
	}
	if l.state == StateExpired {
		l.mu.Unlock()
		return ErrReservationExpiredLocally
	}
	if l.state != StateHeld || l.reservation == nil {
		l.mu.Unlock()
		return ErrNoActiveReservation
	}
	if !l.deadline.IsZero() && !time.Now().Before(l.deadline) {
		// The ticker has not fired yet, but the hold is already dead.
		l.state = StateExpired
		l.reservation = nil
		l.mu.Unlock()
		return ErrReservationExpiredLocally
	}
	id := l.reservation.ID
	l.state = StateConfirming
	gen := l.attempt
	l.mu.Unlock()

	res, err := l.backend.ConfirmReservation(ctx, id)

	l.mu.Lock()
	if l.attempt != gen || l.state != StateConfirming {
		l.mu.Unlock()
		return errSuperseded
	}
	if err != nil {
		l.state = StateIdle
		l.reservation = nil
		l.deadline = time.Time{}
		l.mu.Unlock()
		l.settle()
		var rej *api.Error
		if errors.As(err, &rej) {
			l.log.Info("confirm rejected", zap.String("reservation", id), zap.String("reason", rej.Message))
			return &ConfirmRejectedError{Reason: rej.Message}
		}
		l.log.Warn("confirm request failed", zap.String("reservation", id), zap.Error(err))
		return err
	}

	l.state = StateConfirmed
	l.reservation = &res
	l.deadline = time.Time{}
	l.mu.Unlock()
	l.settle()
	l.log.Info("reservation confirmed", zap.String("reservation", res.ID))
	return nil
}

// Cancel abandons the current hold.  The release request is
// fire-and-forget: whatever the server answers, the attempt ends idle,
// since the server's own expiry is the backstop for a lost cancel.
func (l *Lifecycle) Cancel(ctx context.Context) error {
	l.mu.Lock()
	if l.busyLocked() {
		l.mu.Unlock()
		return ErrOperationInProgress
	}
	if l.state != StateHeld || l.reservation == nil {
		// Nothing held; just make sure the attempt is reset.
		l.state = StateIdle
		l.reservation = nil
		l.deadline = time.Time{}
		l.mu.Unlock()
		return nil
	}
	id := l.reservation.ID
	l.state = StateCancelling
	gen := l.attempt
	l.mu.Unlock()

	if err := l.backend.CancelReservation(ctx, id); err != nil {
		l.log.Warn("cancel request failed", zap.String("reservation", id), zap.Error(err))
	}

	l.mu.Lock()
	if l.attempt == gen && l.state == StateCancelling {
		l.state = StateIdle
		l.reservation = nil
		l.deadline = time.Time{}
	}
	l.mu.Unlock()
	l.settle()
	return nil
}

// Tick advances the local countdown.  The session calls it once per
// second while a view is open; when the deadline passes while held,
// the attempt moves to expired and further confirms fail fast.  The
// server state is untouched: its own expiry is authoritative.
func (l *Lifecycle) Tick(now time.Time) {
	l.mu.Lock()
	expired := l.state == StateHeld && !l.deadline.IsZero() && !now.Before(l.deadline)
	if expired {
		l.state = StateExpired
		l.reservation = nil
	}
	l.mu.Unlock()
	if expired {
		l.log.Info("hold expired locally", zap.String("showtime", l.showtimeID))
	}
}

// Reset abandons the current attempt without touching the server and
// invalidates any response still in flight, which will be discarded
// when it lands.  Used on view teardown.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	l.attempt++
	l.state = StateIdle
	l.reservation = nil
	l.deadline = time.Time{}
	l.mu.Unlock()
}

func (l *Lifecycle) settle() {
	if l.onSettle != nil {
		l.onSettle()
	}
}
