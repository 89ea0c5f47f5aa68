package config // package config loads runtime configuration from environment variables

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the binaries read.  Each field maps to one
// environment variable; sensible defaults keep a local run working with
// no environment at all.  The client side and the harness share this
// structure since the demo runs both in one process tree.
type Config struct {
	Env        string // application environment (dev/test/prod)
	APIBaseURL string // booking backend base URL the client talks to

	RedisAddr     string // host:port of the Redis server carrying seat updates
	RedisPassword string // optional Redis password
	RedisDB       int    // Redis database number

	PollInterval            time.Duration // seat-availability snapshot poll
	ReservationPollInterval time.Duration // my-reservations list refresh
	HTTPTimeout             time.Duration // per-request client timeout

	// Harness-only settings.
	Port       string        // HTTP port the harness listens on
	JWTSecret  string        // secret signing harness access tokens
	TokenTTL   time.Duration // access token lifetime
	HoldTTL    time.Duration // server-side hold duration
	AMQPURL    string        // RabbitMQ URL for booking.confirmed events, empty disables
	BcryptCost int           // bcrypt cost for demo user passwords
}

// Load reads the environment and returns a Config.  Every value has a
// default; nothing is fatal here, so the engine can be embedded without
// ceremony.
func Load() Config {
	return Config{
		Env:        getenv("APP_ENV", "dev"),
		APIBaseURL: getenv("API_BASE_URL", "http://localhost:3000"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       atoi(getenv("REDIS_DB", "0")),

		PollInterval:            parseDur(getenv("SEAT_POLL_INTERVAL", "30s")),
		ReservationPollInterval: parseDur(getenv("RESERVATION_POLL_INTERVAL", "60s")),
		HTTPTimeout:             parseDur(getenv("HTTP_TIMEOUT", "10s")),

		Port:       getenv("APP_PORT", "3000"),
		JWTSecret:  getenv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:   parseDur(getenv("ACCESS_TOKEN_TTL", "30m")),
		HoldTTL:    parseDur(getenv("HOLD_TTL", "5m")),
		AMQPURL:    os.Getenv("AMQP_URL"),
		BcryptCost: atoi(getenv("BCRYPT_COST", "10")),
	}
}

// getenv returns the value of key or def when unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
