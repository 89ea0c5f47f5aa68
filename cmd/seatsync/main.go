package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/api"
	"github.com/cinebook/seatsync/internal/config"
	"github.com/cinebook/seatsync/internal/lifecycle"
	"github.com/cinebook/seatsync/internal/model"
	"github.com/cinebook/seatsync/internal/realtime"
	"github.com/cinebook/seatsync/internal/session"
)

// seatsync is a terminal client for the seat engine.  It logs in,
// opens a session on one showtime and walks a booking through
// select, hold and confirm, re-rendering the grid as pushed updates
// and countdown ticks arrive.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		email      = flag.String("email", getenvDefault("DEMO_EMAIL", "alice@example.com"), "account email")
		password   = flag.String("password", getenvDefault("DEMO_PASSWORD", "password1"), "account password")
		showtimeID = flag.String("showtime", "", "showtime id, defaults to the first listed")
		seatSpec   = flag.String("seats", "1,1 1,2", "seats to book, space-separated row,column pairs")
		confirm    = flag.Bool("confirm", true, "confirm the hold instead of letting it expire")
	)
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *email, *password, *showtimeID, *seatSpec, *confirm); err != nil {
		log.Fatal("run", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, email, password, showtimeID, seatSpec string, confirm bool) error {
	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	login, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info("logged in", zap.String("user", login.User.Name))

	if showtimeID == "" {
		showtimeID, err = firstShowtime(ctx, client)
		if err != nil {
			return err
		}
	}
	seats, err := parseSeats(seatSpec)
	if err != nil {
		return err
	}

	ch, err := openChannel(ctx, cfg, showtimeID, log)
	if err != nil {
		return err
	}

	render := make(chan struct{}, 1)
	s, err := session.Open(ctx, session.Config{
		ShowtimeID:   showtimeID,
		Backend:      client,
		Channel:      ch,
		PollInterval: cfg.PollInterval,
		Logger:       log,
		OnChange: func() {
			select {
			case render <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer s.Close()

	go func() {
		for range render {
			printView(s.View())
		}
	}()
	go watchReservations(ctx, client, cfg.ReservationPollInterval, log)

	printView(s.View())
	for _, pos := range seats {
		if !s.ToggleSeat(pos) {
			log.Warn("seat not selectable", zap.String("seat", pos.String()))
		}
	}

	if err := s.RequestHold(ctx); err != nil {
		var rej *lifecycle.HoldRejectedError
		if errors.As(err, &rej) {
			log.Warn("hold rejected", zap.String("reason", rej.Reason),
				zap.Int("contested", len(rej.Unavailable)))
			return nil
		}
		return fmt.Errorf("hold: %w", err)
	}
	log.Info("seats held", zap.Duration("remaining", s.View().Remaining))

	if !confirm {
		log.Info("waiting for the hold to run out, ctrl-c to quit")
		<-ctx.Done()
		return nil
	}

	if err := s.RequestConfirm(ctx); err != nil {
		var rej *lifecycle.ConfirmRejectedError
		if errors.As(err, &rej) {
			log.Warn("confirm rejected", zap.String("reason", rej.Reason))
			return nil
		}
		return fmt.Errorf("confirm: %w", err)
	}
	log.Info("booking confirmed")
	printView(s.View())
	return nil
}

// firstShowtime resolves a default showtime from the catalog.
func firstShowtime(ctx context.Context, client *api.Client) (string, error) {
	page, err := client.GetNowPlaying(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("now playing: %w", err)
	}
	for _, m := range page.Movies {
		sts, err := client.GetShowtimesByMovie(ctx, m.ID)
		if err != nil {
			return "", fmt.Errorf("showtimes for %s: %w", m.ID, err)
		}
		if len(sts) > 0 {
			return sts[0].ID, nil
		}
	}
	return "", errors.New("no showtimes scheduled")
}

// openChannel subscribes to pushed seat updates, falling back to a
// poll-only session when Redis is not reachable.
func openChannel(ctx context.Context, cfg config.Config, showtimeID string, log *zap.Logger) (realtime.Channel, error) {
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		ch, err := realtime.Subscribe(ctx, rdb, showtimeID, log)
		if err == nil {
			return ch, nil
		}
		log.Warn("subscribe failed, continuing poll-only", zap.Error(err))
	}
	return pollOnlyChannel{updates: make(chan model.SeatAvailability)}, nil
}

type pollOnlyChannel struct {
	updates chan model.SeatAvailability
}

func (c pollOnlyChannel) Updates() <-chan model.SeatAvailability { return c.updates }
func (c pollOnlyChannel) Close() error                           { return nil }

// watchReservations refreshes the account's reservation list on a slow
// cadence, mirroring what a "my tickets" screen would show.
func watchReservations(ctx context.Context, client *api.Client, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			list, err := client.GetMyReservations(ctx)
			if err != nil {
				log.Warn("reservation refresh failed", zap.Error(err))
				continue
			}
			log.Info("reservations", zap.Int("count", len(list)))
		}
	}
}

func parseSeats(raw string) ([]model.SeatPosition, error) {
	var out []model.SeatPosition
	for _, pair := range strings.Fields(raw) {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad seat %q, want row,column", pair)
		}
		row, err1 := strconv.Atoi(parts[0])
		col, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("bad seat %q, want row,column", pair)
		}
		out = append(out, model.SeatPosition{Row: row, Column: col})
	}
	return out, nil
}

// printView renders the grid: dot free, h held, X confirmed, brackets
// around the local selection.
func printView(v session.View) {
	selected := make(map[model.SeatPosition]bool, len(v.Selection))
	for _, pos := range v.Selection {
		selected[pos] = true
	}
	fmt.Printf("\n-- %s", v.State)
	if v.Remaining > 0 {
		fmt.Printf(" (%s left)", v.Remaining.Round(time.Second))
	}
	fmt.Println(" --")
	for row := 1; row <= v.Grid.Rows; row++ {
		for col := 1; col <= v.Grid.Columns; col++ {
			pos := model.SeatPosition{Row: row, Column: col}
			status, _ := v.Grid.StatusAt(pos)
			c := "."
			switch status {
			case model.SeatHeld:
				c = "h"
			case model.SeatConfirmed:
				c = "X"
			}
			if selected[pos] {
				fmt.Printf("[%s]", c)
			} else {
				fmt.Printf(" %s ", c)
			}
		}
		fmt.Println()
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
