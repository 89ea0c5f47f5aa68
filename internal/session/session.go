// Package session owns one open seat view: it pulls snapshots on an
// interval, consumes pushed updates from the real-time channel, runs
// the one-second countdown tick, and exposes the four mutation entry
// points the presentation surface may invoke.  All grid state flows
// through a single event loop goroutine, so snapshots, pushes and
// ticks are applied one at a time regardless of arrival order.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/lifecycle"
	"github.com/cinebook/seatsync/internal/model"
	"github.com/cinebook/seatsync/internal/realtime"
	"github.com/cinebook/seatsync/internal/reconcile"
)

// ErrClosed is returned by mutation entry points after Close.
var ErrClosed = errors.New("session: view is closed")

// Backend is the slice of the api client a session consumes: the
// snapshot pull plus the three reservation mutations.
type Backend interface {
	GetSeatAvailability(ctx context.Context, showtimeID string) (model.SeatAvailability, error)
	lifecycle.BookingAPI
}

// Config assembles one booking session.  Channel ownership transfers
// to the session, which closes it on teardown.
type Config struct {
	ShowtimeID   string
	Backend      Backend
	Channel      realtime.Channel
	PollInterval time.Duration // snapshot poll, default 30s
	TickInterval time.Duration // countdown tick, default 1s
	Logger       *zap.Logger

	// OnChange, when set, is invoked after any observable state
	// change so the presentation surface can re-render.  It is called
	// from the session's goroutines and must not block.
	OnChange func()
}

// Session is the live state of one showtime view.
type Session struct {
	cfg     Config
	log     *zap.Logger
	rec     *reconcile.Reconciler
	lc      *lifecycle.Lifecycle
	refresh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
	once   sync.Once
}

// View is the observation contract consumed by the presentation
// surface.  Everything in it is a copy; rendering never races the
// engine.
type View struct {
	Grid        model.SeatGrid
	Selection   []model.SeatPosition
	State       lifecycle.State
	Remaining   time.Duration
	Reservation *model.Reservation
}

// Open starts a session: it pulls the initial snapshot, then launches
// the event loop driving polls, pushed updates and countdown ticks.  A
// failed initial fetch is tolerated; the poll interval retries it.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ShowtimeID == "" {
		return nil, errors.New("session: showtime id is required")
	}
	if cfg.Backend == nil || cfg.Channel == nil {
		return nil, errors.New("session: backend and channel are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("showtime", cfg.ShowtimeID)),
		rec:     reconcile.New(),
		refresh: make(chan struct{}, 1),
		ctx:     loopCtx,
		cancel:  cancel,
	}
	s.lc = lifecycle.New(cfg.Backend, cfg.ShowtimeID, cfg.Logger, s.requestRefresh)

	s.pull(ctx)

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close tears the view down: the subscription is released, timers
// stop, and any response still in flight is discarded rather than
// applied.  Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if err := s.cfg.Channel.Close(); err != nil {
			s.log.Warn("closing realtime channel", zap.Error(err))
		}
		s.lc.Reset()
		s.wg.Wait()
	})
}

// ToggleSeat flips the selection state of one seat.  It is a silent
// no-op while a hold or confirm request is in flight, on confirmed
// seats, and after Close, mirroring a disabled seat button.
func (s *Session) ToggleSeat(pos model.SeatPosition) bool {
	if s.closed.Load() || s.lc.Busy() {
		return false
	}
	changed := s.rec.Toggle(pos)
	if changed {
		s.notify()
	}
	return changed
}

// RequestHold submits the current selection for a server-side hold.
func (s *Session) RequestHold(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := s.lc.RequestHold(ctx, s.rec.Selection())

	// A rejection names the seats that were taken; drop them from the
	// selection immediately instead of waiting for the refresh.
	var rej *lifecycle.HoldRejectedError
	if errors.As(err, &rej) {
		for _, pos := range rej.Unavailable {
			if s.rec.Selected(pos) {
				s.rec.Toggle(pos)
			}
		}
	}
	s.notify()
	return err
}

// RequestConfirm converts the held reservation into a booking.  On
// success the selection is cleared; the attempt is settled.
func (s *Session) RequestConfirm(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := s.lc.RequestConfirm(ctx)
	if err == nil {
		s.rec.ClearSelection()
	}
	s.notify()
	return err
}

// Cancel abandons the current hold and clears the selection.
func (s *Session) Cancel(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := s.lc.Cancel(ctx)
	if err == nil {
		s.rec.ClearSelection()
	}
	s.notify()
	return err
}

// View returns a consistent copy of everything the presentation
// surface renders.
func (s *Session) View() View {
	return View{
		Grid:        s.rec.Grid(),
		Selection:   s.rec.Selection(),
		State:       s.lc.State(),
		Remaining:   s.lc.Remaining(),
		Reservation: s.lc.Reservation(),
	}
}

func (s *Session) loop() {
	defer s.wg.Done()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()

	updates := s.cfg.Channel.Updates()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-poll.C:
			s.pull(s.ctx)
		case <-s.refresh:
			s.pull(s.ctx)
		case av, ok := <-updates:
			if !ok {
				// Channel shut down; polling keeps the view converging.
				updates = nil
				continue
			}
			s.applyPush(av)
		case now := <-tick.C:
			s.lc.Tick(now)
			s.notify()
		}
	}
}

// requestRefresh asks the event loop for an immediate snapshot pull.
// Coalesced: one pending request is enough, extra triggers are dropped.
func (s *Session) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Session) pull(ctx context.Context) {
	av, err := s.cfg.Backend.GetSeatAvailability(ctx, s.cfg.ShowtimeID)
	if err != nil {
		// Tolerated silently; the next interval retries.
		s.log.Debug("snapshot pull failed", zap.Error(err))
		return
	}
	grid, err := av.Grid()
	if err != nil {
		s.log.Warn("discarding invalid snapshot", zap.Error(err))
		return
	}
	dropped, err := s.rec.LoadSnapshot(grid)
	if err != nil {
		s.log.Warn("snapshot not applied", zap.Error(err))
		return
	}
	if len(dropped) > 0 {
		s.log.Info("seats deselected by snapshot", zap.Int("count", len(dropped)))
	}
	s.notify()
}

func (s *Session) applyPush(av model.SeatAvailability) {
	if av.Showtime.ID != s.cfg.ShowtimeID {
		s.log.Warn("ignoring update for foreign showtime", zap.String("got", av.Showtime.ID))
		return
	}
	grid, err := av.Grid()
	if err != nil {
		s.log.Warn("discarding invalid pushed update", zap.Error(err))
		return
	}
	dropped, err := s.rec.ApplyDelta(grid)
	if err != nil {
		s.log.Warn("pushed update not applied", zap.Error(err))
		return
	}
	if len(dropped) > 0 {
		s.log.Info("seats deselected by pushed update", zap.Int("count", len(dropped)))
	}
	s.notify()
}

func (s *Session) notify() {
	if s.cfg.OnChange != nil && !s.closed.Load() {
		s.cfg.OnChange()
	}
}
