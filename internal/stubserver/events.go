package stubserver

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/model"
	"github.com/cinebook/seatsync/internal/realtime"
)

const bookingQueueName = "booking.confirmed"

// BookingConfirmedEvent is published when a reservation is confirmed.
// It carries enough for downstream consumers to log or notify without
// querying the store.
type BookingConfirmedEvent struct {
	ReservationID string               `json:"reservation_id"`
	UserID        string               `json:"user_id"`
	ShowtimeID    string               `json:"showtime_id"`
	Seats         []model.SeatPosition `json:"seats"`
	ConfirmedAt   time.Time            `json:"confirmed_at"`
}

// Publisher fans mutations out of the harness: every seat change is
// pushed to the showtime's real-time topic, and confirmed bookings are
// additionally announced on the message broker.  Both are best-effort;
// the store is already consistent when either fires, and clients heal
// through polling.
type Publisher interface {
	PublishSeatUpdate(ctx context.Context, availability model.SeatAvailability)
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent)
}

// NopPublisher discards everything.  Used when no broker is around.
type NopPublisher struct{}

func (NopPublisher) PublishSeatUpdate(context.Context, model.SeatAvailability) {}
func (NopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) {}

// BrokerPublisher pushes seat updates through Redis pub/sub and
// confirmed-booking events through RabbitMQ.  Either backend may be
// absent (nil client, empty URL) and that leg is skipped.
type BrokerPublisher struct {
	rdb     *redis.Client
	amqpURL string
	log     *zap.Logger
}

// NewBrokerPublisher wires the two fan-out legs.  log must not be nil.
func NewBrokerPublisher(rdb *redis.Client, amqpURL string, log *zap.Logger) *BrokerPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrokerPublisher{rdb: rdb, amqpURL: amqpURL, log: log}
}

func (p *BrokerPublisher) PublishSeatUpdate(ctx context.Context, availability model.SeatAvailability) {
	if p.rdb == nil {
		return
	}
	if err := realtime.Publish(ctx, p.rdb, availability); err != nil {
		p.log.Warn("seat update fan-out failed",
			zap.String("showtime", availability.Showtime.ID), zap.Error(err))
	}
}

// PublishBookingConfirmed publishes the event to the booking.confirmed
// queue, durable and persistent so it survives broker restarts.  A
// fresh connection per event keeps the harness simple; this is not a
// throughput path.
func (p *BrokerPublisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) {
	if p.amqpURL == "" {
		return
	}
	conn, err := amqp.Dial(p.amqpURL)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(bookingQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.Error(err))
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("marshal booking event failed", zap.Error(err))
		return
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", bookingQueueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err))
	}
}

// StartBookingConsumer consumes booking.confirmed and writes one
// structured log line per confirmation.  It runs a reconnect loop with
// capped backoff and returns only when ctx is cancelled.
func StartBookingConsumer(ctx context.Context, amqpURL string, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, err := amqp.Dial(amqpURL)
		if err != nil {
			log.Warn("booking consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeBookings(ctx, conn, log); err != nil {
			log.Warn("booking consume loop ended", zap.Error(err))
		}
		_ = conn.Close()
	}
}

func consumeBookings(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(bookingQueueName, true, false, false, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(bookingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev BookingConfirmedEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				log.Warn("malformed booking event", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue, avoids a tight loop
				continue
			}
			log.Info("booking confirmed",
				zap.String("reservation", ev.ReservationID),
				zap.String("user", ev.UserID),
				zap.String("showtime", ev.ShowtimeID),
				zap.Int("seats", len(ev.Seats)),
				zap.Time("confirmed_at", ev.ConfirmedAt))
			_ = d.Ack(false)
		}
	}
}
