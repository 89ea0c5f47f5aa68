package stubserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Server binds the store and publisher to the HTTP surface the client
// engine consumes.  Unauthenticated routes cover the catalog; every
// reservation route sits behind the bearer-token middleware.
type Server struct {
	store     *Store
	publisher Publisher
	secret    string
	tokenTTL  time.Duration
	log       *zap.Logger
	echo      *echo.Echo
}

// New assembles the harness server.  publisher may be nil, in which
// case mutations are not fanned out.
func New(store *Store, publisher Publisher, secret string, tokenTTL time.Duration, log *zap.Logger) *Server {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:     store,
		publisher: publisher,
		secret:    secret,
		tokenTTL:  tokenTTL,
		log:       log,
		echo:      echo.New(),
	}
	s.echo.HideBanner = true
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET("/healthz", s.health)
	e.POST("/auth/login", s.login)

	e.GET("/movies/now-playing", s.nowPlaying)
	e.GET("/movies/:id", s.movieDetails)
	e.GET("/showtimes/movie/:movieId", s.showtimesByMovie)
	e.GET("/showtimes/:id", s.showtimeByID)

	r := e.Group("/reservations", requireAuth(s.secret))
	r.GET("/showtime/:id", s.seatAvailability)
	r.GET("/my-reservations", s.myReservations)
	r.POST("/hold", s.holdSeats)
	r.POST("/confirm", s.confirmReservation)
	r.DELETE("/:id", s.cancelReservation)
}

// Handler exposes the server as an http.Handler so tests can mount it
// on httptest without a listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	s.log.Info("harness listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}
