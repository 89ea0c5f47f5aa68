// Package stubserver is the in-memory booking backend the engine is
// developed and tested against.  It implements exactly the external
// interface the client consumes -- catalog reads, seat availability,
// hold/confirm/cancel, login -- with the same structured rejections a
// production backend would return.  Seat state lives behind one mutex;
// expired holds are swept before every read and write, the same
// cleanup-before-check the production schema performs in SQL.
package stubserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinebook/seatsync/internal/model"
)

var (
	// ErrNotFound covers lookups of unknown movies, showtimes and
	// reservations.
	ErrNotFound = errors.New("stubserver: not found")

	// ErrInvalidCredentials is returned by Authenticate on a wrong
	// email or password.
	ErrInvalidCredentials = errors.New("stubserver: invalid credentials")

	// ErrHoldExpired is returned when confirming a reservation whose
	// hold already lapsed server-side.
	ErrHoldExpired = errors.New("stubserver: hold has expired")
)

// SeatsUnavailableError rejects a hold naming the seats that were
// taken, so the client can deselect exactly those.
type SeatsUnavailableError struct {
	Positions []model.SeatPosition
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("stubserver: some seats are unavailable: %v", e.Positions)
}

type user struct {
	id           string
	email        string
	name         string
	passwordHash []byte
}

type reservation struct {
	model.Reservation
	userID string
}

// Store holds all backend state in memory.  The clock is injectable so
// tests can expire holds without sleeping.
type Store struct {
	holdTTL time.Duration
	now     func() time.Time

	mu           sync.Mutex
	users        map[string]*user // keyed by email
	movies       []model.Movie
	showtimes    map[string]model.Showtime
	grids        map[string]model.SeatGrid
	reservations map[string]*reservation
}

// NewStore returns an empty store whose holds last holdTTL.
func NewStore(holdTTL time.Duration) *Store {
	return &Store{
		holdTTL:      holdTTL,
		now:          time.Now,
		users:        make(map[string]*user),
		showtimes:    make(map[string]model.Showtime),
		grids:        make(map[string]model.SeatGrid),
		reservations: make(map[string]*reservation),
	}
}

// SetClock replaces the store's time source.  Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AddUser registers a demo user with a bcrypt-hashed password and
// returns its id.
func (s *Store) AddUser(email, name, password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("stubserver: hash password: %w", err)
	}
	u := &user{id: uuid.NewString(), email: email, name: name, passwordHash: hash}
	s.mu.Lock()
	s.users[email] = u
	s.mu.Unlock()
	return u.id, nil
}

// Authenticate verifies a login and returns the user's id and name.
func (s *Store) Authenticate(email, password string) (id, name string, err error) {
	s.mu.Lock()
	u, ok := s.users[email]
	s.mu.Unlock()
	if !ok {
		return "", "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}
	return u.id, u.name, nil
}

// AddMovie appends a movie to the catalog.
func (s *Store) AddMovie(m model.Movie) {
	s.mu.Lock()
	s.movies = append(s.movies, m)
	s.mu.Unlock()
}

// AddShowtime registers a showtime and seeds its grid fully available.
func (s *Store) AddShowtime(st model.Showtime) {
	s.mu.Lock()
	s.showtimes[st.ID] = st
	s.grids[st.ID] = model.NewSeatGrid(st.TotalRows, st.TotalColumns, model.SeatAvailable)
	s.mu.Unlock()
}

// Movies returns the catalog.
func (s *Store) Movies() []model.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Movie(nil), s.movies...)
}

// Movie looks a movie up by id.
func (s *Store) Movie(id string) (model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movies {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Movie{}, ErrNotFound
}

// ShowtimesByMovie lists the screenings of one movie.
func (s *Store) ShowtimesByMovie(movieID string) []model.Showtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Showtime
	for _, st := range s.showtimes {
		if st.MovieID == movieID {
			out = append(out, st)
		}
	}
	return out
}

// Showtime looks a showtime up by id.
func (s *Store) Showtime(id string) (model.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.showtimes[id]
	if !ok {
		return model.Showtime{}, ErrNotFound
	}
	return st, nil
}

// Availability returns the full availability document for a showtime,
// sweeping expired holds first so the grid reflects current truth.
func (s *Store) Availability(showtimeID string) (model.SeatAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return s.availabilityLocked(showtimeID)
}

func (s *Store) availabilityLocked(showtimeID string) (model.SeatAvailability, error) {
	st, ok := s.showtimes[showtimeID]
	if !ok {
		return model.SeatAvailability{}, ErrNotFound
	}
	return model.AvailabilityFromGrid(st, s.grids[showtimeID].Clone()), nil
}

// Hold places a time-boxed hold for userID on the given seats.  All
// seats must be available; otherwise the hold is rejected wholesale
// with the taken positions listed.  On success it returns the created
// reservation plus the post-mutation availability for fan-out.
func (s *Store) Hold(userID, showtimeID string, seats []model.SeatPosition) (model.Reservation, model.SeatAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	grid, ok := s.grids[showtimeID]
	if !ok {
		return model.Reservation{}, model.SeatAvailability{}, ErrNotFound
	}

	// Deduplicate, then verify every requested seat is free before
	// touching anything: a hold is all-or-nothing.
	seen := make(map[model.SeatPosition]struct{}, len(seats))
	unique := make([]model.SeatPosition, 0, len(seats))
	var unavailable []model.SeatPosition
	for _, pos := range seats {
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		unique = append(unique, pos)
		status, inGrid := grid.StatusAt(pos)
		if !inGrid || status != model.SeatAvailable {
			unavailable = append(unavailable, pos)
		}
	}
	if len(unique) == 0 {
		return model.Reservation{}, model.SeatAvailability{}, &SeatsUnavailableError{}
	}
	if len(unavailable) > 0 {
		return model.Reservation{}, model.SeatAvailability{}, &SeatsUnavailableError{Positions: unavailable}
	}

	now := s.now()
	expires := now.Add(s.holdTTL)
	res := &reservation{
		Reservation: model.Reservation{
			ID:         uuid.NewString(),
			ShowtimeID: showtimeID,
			Seats:      unique,
			Status:     model.ReservationHold,
			ExpiresAt:  &expires,
			CreatedAt:  now,
		},
		userID: userID,
	}
	for _, pos := range unique {
		grid.SetStatus(pos, model.SeatHeld)
	}
	s.reservations[res.ID] = res

	av, err := s.availabilityLocked(showtimeID)
	return res.Reservation, av, err
}

// Confirm converts a hold into a permanent booking.  A hold that has
// lapsed is rejected with ErrHoldExpired (and swept), exactly the race
// the client's doomed-confirm path exercises.
func (s *Store) Confirm(userID, reservationID string) (model.Reservation, model.SeatAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	res, ok := s.reservations[reservationID]
	if !ok || res.userID != userID {
		// Swept holds land here too: from the server's perspective an
		// expired hold no longer exists.
		return model.Reservation{}, model.SeatAvailability{}, ErrHoldExpired
	}
	if res.Status != model.ReservationHold {
		return model.Reservation{}, model.SeatAvailability{}, ErrNotFound
	}

	grid := s.grids[res.ShowtimeID]
	for _, pos := range res.Seats {
		grid.SetStatus(pos, model.SeatConfirmed)
	}
	res.Status = model.ReservationConfirmed
	res.ExpiresAt = nil

	av, err := s.availabilityLocked(res.ShowtimeID)
	return res.Reservation, av, err
}

// CancelReservation releases a hold (or an entire confirmed booking,
// which models the external cancellation that frees confirmed seats).
func (s *Store) CancelReservation(userID, reservationID string) (model.SeatAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	res, ok := s.reservations[reservationID]
	if !ok || res.userID != userID {
		return model.SeatAvailability{}, ErrNotFound
	}
	grid := s.grids[res.ShowtimeID]
	for _, pos := range res.Seats {
		grid.SetStatus(pos, model.SeatAvailable)
	}
	delete(s.reservations, reservationID)
	return s.availabilityLocked(res.ShowtimeID)
}

// ReservationsFor lists a user's reservations, holds first.
func (s *Store) ReservationsFor(userID string) []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	var out []model.Reservation
	for _, res := range s.reservations {
		if res.userID == userID {
			out = append(out, res.Reservation)
		}
	}
	return out
}

// sweepLocked releases every hold whose expiry has passed, freeing its
// seats.  Confirmed reservations are untouched.
func (s *Store) sweepLocked() {
	now := s.now()
	for id, res := range s.reservations {
		if res.Status != model.ReservationHold || res.ExpiresAt == nil || res.ExpiresAt.After(now) {
			continue
		}
		grid := s.grids[res.ShowtimeID]
		for _, pos := range res.Seats {
			if status, ok := grid.StatusAt(pos); ok && status == model.SeatHeld {
				grid.SetStatus(pos, model.SeatAvailable)
			}
		}
		delete(s.reservations, id)
	}
}
