package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cinebook/seatsync/internal/model"
)

// The catalog endpoints are consumed read-only: browsing movies and
// showtimes happens outside the reservation core, but the engine needs
// them to resolve a showtime before opening a seat view.

// NowPlayingPage is one page of the now-playing listing.
type NowPlayingPage struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Movies     []model.Movie `json:"movies"`
}

// GetNowPlaying fetches one page of currently playing movies.
func (c *Client) GetNowPlaying(ctx context.Context, page int) (NowPlayingPage, error) {
	if page < 1 {
		page = 1
	}
	var out NowPlayingPage
	err := c.do(ctx, http.MethodGet, "/movies/now-playing?page="+strconv.Itoa(page), nil, &out)
	return out, err
}

// GetMovieDetails fetches a single movie by catalog id.
func (c *Client) GetMovieDetails(ctx context.Context, movieID string) (model.Movie, error) {
	var out model.Movie
	err := c.do(ctx, http.MethodGet, "/movies/"+url.PathEscape(movieID), nil, &out)
	return out, err
}

// GetShowtimesByMovie lists the scheduled screenings of a movie.
func (c *Client) GetShowtimesByMovie(ctx context.Context, movieID string) ([]model.Showtime, error) {
	var out []model.Showtime
	err := c.do(ctx, http.MethodGet, "/showtimes/movie/"+url.PathEscape(movieID), nil, &out)
	return out, err
}

// GetShowtimeByID fetches one showtime with its grid dimensions.
func (c *Client) GetShowtimeByID(ctx context.Context, showtimeID string) (model.Showtime, error) {
	var out model.Showtime
	err := c.do(ctx, http.MethodGet, "/showtimes/"+url.PathEscape(showtimeID), nil, &out)
	return out, err
}
