// Package realtime delivers pushed seat updates for a showtime.  Each
// open seat view holds exactly one subscription to its showtime's
// topic; every published payload is a complete availability document,
// so a dropped or reordered message costs at most one redundant
// re-render and is healed by the next poll.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cinebook/seatsync/internal/model"
)

// Channel is the subscription a booking session consumes.  Updates is
// closed when the channel shuts down; Close is idempotent and must be
// called on view teardown so updates never leak into a torn-down view.
type Channel interface {
	Updates() <-chan model.SeatAvailability
	Close() error
}

// Topic returns the pub/sub topic carrying updates for a showtime.
func Topic(showtimeID string) string {
	return "seats:" + showtimeID
}

// RedisChannel is a Channel backed by a Redis pub/sub subscription.
type RedisChannel struct {
	log     *zap.Logger
	pubsub  *redis.PubSub
	updates chan model.SeatAvailability
	once    sync.Once
}

// Subscribe opens the subscription for one showtime and confirms it
// with the server before returning, so no published update can slip
// past between subscribe and the first read.
func Subscribe(ctx context.Context, rdb *redis.Client, showtimeID string, log *zap.Logger) (*RedisChannel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ps := rdb.Subscribe(ctx, Topic(showtimeID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("realtime: subscribe %s: %w", Topic(showtimeID), err)
	}
	c := &RedisChannel{
		log:     log,
		pubsub:  ps,
		updates: make(chan model.SeatAvailability, 16),
	}
	go c.pump(showtimeID)
	return c, nil
}

// Updates returns the stream of pushed availability documents.
func (c *RedisChannel) Updates() <-chan model.SeatAvailability {
	return c.updates
}

// Close tears the subscription down.  Safe to call more than once.
func (c *RedisChannel) Close() error {
	var err error
	c.once.Do(func() {
		err = c.pubsub.Close()
	})
	return err
}

func (c *RedisChannel) pump(showtimeID string) {
	defer close(c.updates)
	for msg := range c.pubsub.Channel() {
		var payload model.SeatAvailability
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			// Tolerated: the next poll or push carries full truth.
			c.log.Warn("discarding malformed seat update",
				zap.String("showtime", showtimeID), zap.Error(err))
			continue
		}
		select {
		case c.updates <- payload:
		default:
			// Consumer is behind.  Every payload is a full grid, so
			// dropping this one only delays convergence to the next
			// message or poll.
			c.log.Debug("dropping seat update, consumer busy",
				zap.String("showtime", showtimeID))
		}
	}
}

// Publish pushes a full availability document to every subscriber of
// the showtime's topic.  The harness calls this after each mutation.
func Publish(ctx context.Context, rdb *redis.Client, availability model.SeatAvailability) error {
	raw, err := json.Marshal(availability)
	if err != nil {
		return fmt.Errorf("realtime: encode update: %w", err)
	}
	if err := rdb.Publish(ctx, Topic(availability.Showtime.ID), raw).Err(); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", Topic(availability.Showtime.ID), err)
	}
	return nil
}
