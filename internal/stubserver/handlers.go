package stubserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/seatsync/internal/model"
)

const nowPlayingPageSize = 20

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	id, name, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid email or password"})
	}
	token, err := issueToken(s.secret, id, s.tokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  echo.Map{"id": id, "email": req.Email, "name": name},
	})
}

func (s *Server) nowPlaying(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	movies := s.store.Movies()
	totalPages := (len(movies) + nowPlayingPageSize - 1) / nowPlayingPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * nowPlayingPageSize
	if start > len(movies) {
		start = len(movies)
	}
	end := start + nowPlayingPageSize
	if end > len(movies) {
		end = len(movies)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"page":       page,
		"totalPages": totalPages,
		"movies":     movies[start:end],
	})
}

func (s *Server) movieDetails(c echo.Context) error {
	m, err := s.store.Movie(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "movie not found"})
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) showtimesByMovie(c echo.Context) error {
	out := s.store.ShowtimesByMovie(c.Param("movieId"))
	if out == nil {
		out = []model.Showtime{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) showtimeByID(c echo.Context) error {
	st, err := s.store.Showtime(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "showtime not found"})
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) seatAvailability(c echo.Context) error {
	av, err := s.store.Availability(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "showtime not found"})
	}
	return c.JSON(http.StatusOK, av)
}

func (s *Server) myReservations(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	out := s.store.ReservationsFor(userID)
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) holdSeats(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req struct {
		ShowtimeID string               `json:"showtimeId"`
		Seats      []model.SeatPosition `json:"seats"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid request body"})
	}
	if req.ShowtimeID == "" || len(req.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "showtimeId and seats are required"})
	}
	for _, pos := range req.Seats {
		if !pos.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid seat position"})
		}
	}

	res, av, err := s.store.Hold(userID, req.ShowtimeID, req.Seats)
	if err != nil {
		var unavailable *SeatsUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"message":     "some seats are unavailable",
				"unavailable": unavailable.Positions,
			})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "showtime not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to hold seats"})
		}
	}

	s.publisher.PublishSeatUpdate(c.Request().Context(), av)
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) confirmReservation(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	var req struct {
		ReservationID string `json:"reservationId"`
	}
	if err := c.Bind(&req); err != nil || req.ReservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "reservationId is required"})
	}

	res, av, err := s.store.Confirm(userID, req.ReservationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrHoldExpired):
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "hold has expired"})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reservation not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "failed to confirm reservation"})
		}
	}

	ctx := c.Request().Context()
	s.publisher.PublishSeatUpdate(ctx, av)
	s.publisher.PublishBookingConfirmed(ctx, BookingConfirmedEvent{
		ReservationID: res.ID,
		UserID:        userID,
		ShowtimeID:    res.ShowtimeID,
		Seats:         res.Seats,
		ConfirmedAt:   time.Now().UTC(),
	})
	return c.JSON(http.StatusOK, res)
}

func (s *Server) cancelReservation(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	av, err := s.store.CancelReservation(userID, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "reservation not found"})
	}
	s.publisher.PublishSeatUpdate(c.Request().Context(), av)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
