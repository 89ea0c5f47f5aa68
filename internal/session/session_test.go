package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cinebook/seatsync/internal/api"
	"github.com/cinebook/seatsync/internal/lifecycle"
	"github.com/cinebook/seatsync/internal/model"
)

type fakeBackend struct {
	mu    sync.Mutex
	avail model.SeatAvailability
	pulls int

	holdRes    model.Reservation
	holdErr    error
	confirmRes model.Reservation
	confirmErr error
	cancelErr  error

	blockHold chan struct{}
}

func (f *fakeBackend) GetSeatAvailability(ctx context.Context, showtimeID string) (model.SeatAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return f.avail, nil
}

func (f *fakeBackend) HoldSeats(ctx context.Context, showtimeID string, seats []model.SeatPosition) (model.Reservation, error) {
	f.mu.Lock()
	block := f.blockHold
	res, err := f.holdRes, f.holdErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return res, err
}

func (f *fakeBackend) ConfirmReservation(ctx context.Context, reservationID string) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmRes, f.confirmErr
}

func (f *fakeBackend) CancelReservation(ctx context.Context, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelErr
}

func (f *fakeBackend) setAvailability(av model.SeatAvailability) {
	f.mu.Lock()
	f.avail = av
	f.mu.Unlock()
}

func (f *fakeBackend) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls
}

type fakeChannel struct {
	ch     chan model.SeatAvailability
	closed atomic.Bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{ch: make(chan model.SeatAvailability, 8)}
}

func (f *fakeChannel) Updates() <-chan model.SeatAvailability { return f.ch }

func (f *fakeChannel) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.ch)
	}
	return nil
}

func showtime5x5() model.Showtime {
	return model.Showtime{ID: "st-1", MovieID: "m-1", Datetime: time.Now().Add(time.Hour), TotalRows: 5, TotalColumns: 5}
}

func availAllFree() model.SeatAvailability {
	return model.AvailabilityFromGrid(showtime5x5(), model.NewSeatGrid(5, 5, model.SeatAvailable))
}

func holdReservation(id string, ttl time.Duration, seats ...model.SeatPosition) model.Reservation {
	exp := time.Now().Add(ttl)
	return model.Reservation{ID: id, ShowtimeID: "st-1", Seats: seats, Status: model.ReservationHold, ExpiresAt: &exp, CreatedAt: time.Now()}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openSession(t *testing.T, backend *fakeBackend, ch *fakeChannel) *Session {
	t.Helper()
	s, err := Open(context.Background(), Config{
		ShowtimeID:   "st-1",
		Backend:      backend,
		Channel:      ch,
		PollInterval: time.Hour, // only explicit refreshes during tests
		TickInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestInitialSnapshotIsApplied(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	s := openSession(t, backend, newFakeChannel())

	v := s.View()
	if v.Grid.Rows != 5 || v.Grid.Columns != 5 {
		t.Fatalf("initial grid not applied: %dx%d", v.Grid.Rows, v.Grid.Columns)
	}
	if v.State != lifecycle.StateIdle {
		t.Errorf("fresh session should be idle, got %s", v.State)
	}
}

// The core race: hold two seats, another viewer confirms one of
// them, the pushed grid deselects it, and the doomed confirm comes
// back rejected, returning the attempt to idle with a fresh snapshot
// requested.
func TestConcurrentConfirmRace(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	ch := newFakeChannel()
	s := openSession(t, backend, ch)

	s.ToggleSeat(model.SeatPosition{Row: 1, Column: 1})
	s.ToggleSeat(model.SeatPosition{Row: 1, Column: 2})

	backend.mu.Lock()
	backend.holdRes = holdReservation("R1", 300*time.Second,
		model.SeatPosition{Row: 1, Column: 1}, model.SeatPosition{Row: 1, Column: 2})
	backend.mu.Unlock()

	if err := s.RequestHold(context.Background()); err != nil {
		t.Fatalf("RequestHold: %v", err)
	}
	v := s.View()
	if v.State != lifecycle.StateHeld || v.Reservation == nil || v.Reservation.ID != "R1" {
		t.Fatalf("expected held R1, got state=%s res=%+v", v.State, v.Reservation)
	}
	if v.Remaining <= 295*time.Second {
		t.Errorf("countdown should start near 300s, got %s", v.Remaining)
	}

	// Another viewer confirms (1,1); the server pushes the new grid.
	g := model.NewSeatGrid(5, 5, model.SeatAvailable)
	g.SetStatus(model.SeatPosition{Row: 1, Column: 1}, model.SeatConfirmed)
	ch.ch <- model.AvailabilityFromGrid(showtime5x5(), g)

	waitFor(t, "selection to reconcile to {(1,2)}", func() bool {
		sel := s.View().Selection
		return len(sel) == 1 && sel[0] == (model.SeatPosition{Row: 1, Column: 2})
	})

	// The client does not know R1 now covers a conflicting seat; the
	// confirm is attempted and the server rejects it.
	backend.mu.Lock()
	backend.confirmErr = &api.Error{StatusCode: 400, Message: "hold was invalidated"}
	backend.mu.Unlock()
	pullsBefore := backend.pullCount()

	err := s.RequestConfirm(context.Background())
	var rej *lifecycle.ConfirmRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected ConfirmRejectedError, got %v", err)
	}
	if got := s.View().State; got != lifecycle.StateIdle {
		t.Errorf("rejected confirm should end idle, got %s", got)
	}
	waitFor(t, "a fresh snapshot pull", func() bool {
		return backend.pullCount() > pullsBefore
	})
}

func TestHoldRejectionDropsUnavailableSeats(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	s := openSession(t, backend, newFakeChannel())

	s.ToggleSeat(model.SeatPosition{Row: 2, Column: 1})
	s.ToggleSeat(model.SeatPosition{Row: 2, Column: 2})

	backend.mu.Lock()
	backend.holdErr = &api.Error{
		StatusCode:  400,
		Message:     "some seats are unavailable",
		Unavailable: []model.SeatPosition{{Row: 2, Column: 1}},
	}
	backend.mu.Unlock()

	err := s.RequestHold(context.Background())
	var rej *lifecycle.HoldRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected HoldRejectedError, got %v", err)
	}
	sel := s.View().Selection
	if len(sel) != 1 || sel[0] != (model.SeatPosition{Row: 2, Column: 2}) {
		t.Errorf("unavailable seat should be dropped from selection, got %v", sel)
	}
}

func TestLocalExpiry(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	s := openSession(t, backend, newFakeChannel())

	s.ToggleSeat(model.SeatPosition{Row: 3, Column: 3})
	backend.mu.Lock()
	backend.holdRes = holdReservation("R1", 30*time.Millisecond, model.SeatPosition{Row: 3, Column: 3})
	backend.mu.Unlock()

	if err := s.RequestHold(context.Background()); err != nil {
		t.Fatalf("RequestHold: %v", err)
	}

	waitFor(t, "local expiry", func() bool {
		return s.View().State == lifecycle.StateExpired
	})

	if err := s.RequestConfirm(context.Background()); !errors.Is(err, lifecycle.ErrReservationExpiredLocally) {
		t.Fatalf("expected ErrReservationExpiredLocally, got %v", err)
	}
}

func TestToggleSuspendedWhileRequestInFlight(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree(), blockHold: make(chan struct{})}
	backend.holdRes = holdReservation("R1", time.Minute, model.SeatPosition{Row: 1, Column: 1})
	s := openSession(t, backend, newFakeChannel())

	s.ToggleSeat(model.SeatPosition{Row: 1, Column: 1})

	done := make(chan error, 1)
	go func() { done <- s.RequestHold(context.Background()) }()

	waitFor(t, "hold to take flight", func() bool {
		return s.View().State == lifecycle.StateHolding
	})
	if s.ToggleSeat(model.SeatPosition{Row: 4, Column: 4}) {
		t.Error("toggling must be a no-op while a request is in flight")
	}

	close(backend.blockHold)
	if err := <-done; err != nil {
		t.Fatalf("hold should have succeeded: %v", err)
	}
}

func TestForeignShowtimePushIsIgnored(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	ch := newFakeChannel()
	s := openSession(t, backend, ch)

	other := showtime5x5()
	other.ID = "st-2"
	g := model.NewSeatGrid(5, 5, model.SeatConfirmed)
	ch.ch <- model.AvailabilityFromGrid(other, g)

	// Give the loop a moment, then verify nothing changed.
	time.Sleep(50 * time.Millisecond)
	status, _ := s.View().Grid.StatusAt(model.SeatPosition{Row: 1, Column: 1})
	if status != model.SeatAvailable {
		t.Error("a payload for another showtime must not be applied")
	}
}

func TestCloseReleasesChannelAndBlocksMutations(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	ch := newFakeChannel()
	s := openSession(t, backend, ch)

	s.Close()

	if !ch.closed.Load() {
		t.Error("teardown must unsubscribe the realtime channel")
	}
	if s.ToggleSeat(model.SeatPosition{Row: 1, Column: 1}) {
		t.Error("toggle after close must be a no-op")
	}
	if err := s.RequestHold(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.RequestConfirm(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	// Closing twice is safe.
	s.Close()
}

func TestCancelClearsSelection(t *testing.T) {
	backend := &fakeBackend{avail: availAllFree()}
	s := openSession(t, backend, newFakeChannel())

	s.ToggleSeat(model.SeatPosition{Row: 1, Column: 1})
	backend.mu.Lock()
	backend.holdRes = holdReservation("R1", time.Minute, model.SeatPosition{Row: 1, Column: 1})
	backend.mu.Unlock()
	if err := s.RequestHold(context.Background()); err != nil {
		t.Fatalf("RequestHold: %v", err)
	}

	if err := s.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	v := s.View()
	if v.State != lifecycle.StateIdle {
		t.Errorf("cancel should end idle, got %s", v.State)
	}
	if len(v.Selection) != 0 {
		t.Errorf("cancel should clear the selection, got %v", v.Selection)
	}
}
