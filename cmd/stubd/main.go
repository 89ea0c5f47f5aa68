package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/config"
	"github.com/cinebook/seatsync/internal/model"
	"github.com/cinebook/seatsync/internal/stubserver"
)

// stubd serves the in-memory booking backend: the REST surface the
// seat engine consumes, seeded with demo users and showtimes.  Seat
// updates fan out over Redis and confirmed bookings over RabbitMQ when
// those are reachable; without them the server still works, minus the
// push path.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := newLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store := stubserver.NewStore(cfg.HoldTTL)
	seed(store, cfg.BcryptCost, log)

	var publisher stubserver.Publisher = stubserver.NopPublisher{}
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		publisher = stubserver.NewBrokerPublisher(rdb, cfg.AMQPURL, log)
		log.Info("seat updates will fan out over redis", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("redis unreachable, realtime fan-out disabled")
	}

	if cfg.AMQPURL != "" {
		go stubserver.StartBookingConsumer(context.Background(), cfg.AMQPURL, log)
	}

	srv := stubserver.New(store, publisher, cfg.JWTSecret, cfg.TokenTTL, log)
	addr := ":" + cfg.Port
	log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := srv.Start(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// seed loads a small demo catalog so the client binary has something
// to book against out of the box.
func seed(store *stubserver.Store, bcryptCost int, log *zap.Logger) {
	for _, u := range []struct{ email, name, password string }{
		{"alice@example.com", "Alice", "password1"},
		{"bob@example.com", "Bob", "password2"},
	} {
		if _, err := store.AddUser(u.email, u.name, u.password, bcryptCost); err != nil {
			log.Fatal("seed user", zap.String("email", u.email), zap.Error(err))
		}
	}

	movies := []model.Movie{
		{ID: "m-1", Title: "The Marble City", Overview: "A cartographer maps a city that keeps rearranging itself.", ReleaseDate: "2026-02-13", VoteAverage: 7.8, RuntimeMin: 124},
		{ID: "m-2", Title: "Low Tide", Overview: "Two salvage divers find more than a wreck.", ReleaseDate: "2026-05-01", VoteAverage: 6.9, RuntimeMin: 102},
	}
	for _, m := range movies {
		store.AddMovie(m)
	}

	base := time.Now().Truncate(time.Hour).Add(3 * time.Hour)
	id := 0
	for _, m := range movies {
		for _, offset := range []time.Duration{0, 3 * time.Hour, 6 * time.Hour} {
			id++
			store.AddShowtime(model.Showtime{
				ID:           fmt.Sprintf("st-%d", id),
				MovieID:      m.ID,
				Datetime:     base.Add(offset),
				TotalRows:    8,
				TotalColumns: 10,
			})
		}
	}
	log.Info("seeded demo data", zap.Int("movies", len(movies)), zap.Int("showtimes", id))
}
