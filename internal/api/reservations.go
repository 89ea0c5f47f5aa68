package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cinebook/seatsync/internal/model"
)

// GetSeatAvailability pulls the authoritative availability document
// for one showtime: the showtime metadata plus the full seat grid.
// It backs both the initial fetch on view mount and the recurring
// poll.
func (c *Client) GetSeatAvailability(ctx context.Context, showtimeID string) (model.SeatAvailability, error) {
	var out model.SeatAvailability
	err := c.do(ctx, http.MethodGet, "/reservations/showtime/"+url.PathEscape(showtimeID), nil, &out)
	return out, err
}

// GetMyReservations lists the authenticated user's reservations, both
// pending holds and confirmed bookings.
func (c *Client) GetMyReservations(ctx context.Context) ([]model.Reservation, error) {
	var out []model.Reservation
	err := c.do(ctx, http.MethodGet, "/reservations/my-reservations", nil, &out)
	return out, err
}

// HoldSeats asks the server to place a time-boxed hold on the given
// positions.  On success the returned reservation carries the id and
// expiry the client tracks until confirmation.  When any position is
// no longer available the server answers with a structured rejection
// (*Error) listing the seats that were taken.
func (c *Client) HoldSeats(ctx context.Context, showtimeID string, seats []model.SeatPosition) (model.Reservation, error) {
	body := struct {
		ShowtimeID string               `json:"showtimeId"`
		Seats      []model.SeatPosition `json:"seats"`
	}{ShowtimeID: showtimeID, Seats: seats}
	var out model.Reservation
	err := c.do(ctx, http.MethodPost, "/reservations/hold", body, &out)
	return out, err
}

// ConfirmReservation converts a hold into a permanent booking.  The
// server rejects the confirmation when the hold has already expired or
// was invalidated on its side.
func (c *Client) ConfirmReservation(ctx context.Context, reservationID string) (model.Reservation, error) {
	body := struct {
		ReservationID string `json:"reservationId"`
	}{ReservationID: reservationID}
	var out model.Reservation
	err := c.do(ctx, http.MethodPost, "/reservations/confirm", body, &out)
	return out, err
}

// CancelReservation releases a hold.  Best-effort: the server's own
// expiry is the backstop if this call never lands.
func (c *Client) CancelReservation(ctx context.Context, reservationID string) error {
	return c.do(ctx, http.MethodDelete, "/reservations/"+url.PathEscape(reservationID), nil, nil)
}
