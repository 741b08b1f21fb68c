package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrMalformed marks a message that can never be processed.  Such messages
// are rejected without requeue.
var ErrMalformed = errors.New("malformed message")

// HandlerFunc processes one decoded live.ended event.
type HandlerFunc func(ctx context.Context, ev LiveEndedEvent) error

const maxBackoff = 30 * time.Second

// StartArchiveConsumer connects to RabbitMQ, declares the live.ended queue
// and hands every delivery to handle.  It reconnects with exponential
// backoff when the broker is unreachable or the channel closes, and returns
// only when ctx is cancelled.
func StartArchiveConsumer(ctx context.Context, url string, log *zap.Logger, handle HandlerFunc) error {
	log = log.Named("archive-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, log, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, log *zap.Logger, handle HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(LiveEndedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LiveEndedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ack(d, d.Redelivered, handleMessage(ctx, d.Body, handle), log)
		}
	}
}

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ack settles a delivery.  Malformed messages are dropped.  Other failures
// are requeued once; a redelivered message that fails again is dropped so a
// poisoned event cannot spin the consumer.
func ack(d acknowledger, redelivered bool, err error, log *zap.Logger) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrMalformed):
		log.Error("drop malformed message", zap.Error(err))
		_ = d.Nack(false, false)
	case redelivered:
		log.Error("handle message failed twice; dropping", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		log.Warn("handle message failed; requeueing", zap.Error(err))
		_ = d.Nack(false, true)
	}
}

func handleMessage(ctx context.Context, body []byte, handle HandlerFunc) error {
	var ev LiveEndedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.SessionID == 0 || ev.HostID == 0 {
		return fmt.Errorf("%w: missing session or host id", ErrMalformed)
	}
	return handle(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
