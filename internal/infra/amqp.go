// README: RabbitMQ connection with dial retry and a declared mutation queue.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	amqpMaxRetries = 10
	amqpMaxDelay   = 30 * time.Second
)

type AMQP struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewAMQP dials RabbitMQ with exponential backoff and declares the durable
// mutation queue so publisher and consumer can start in any order.
func NewAMQP(ctx context.Context, url, queue string, log *slog.Logger) (*AMQP, error) {
	delay := time.Second
	for attempt := 1; ; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("open channel: %w", chErr)
			}
			if err := ch.Qos(10, 0, false); err != nil {
				_ = ch.Close()
				_ = conn.Close()
				return nil, fmt.Errorf("set qos: %w", err)
			}
			if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
				_ = ch.Close()
				_ = conn.Close()
				return nil, fmt.Errorf("declare queue %s: %w", queue, err)
			}
			return &AMQP{Conn: conn, Channel: ch}, nil
		}

		log.Warn("rabbitmq dial failed", "attempt", attempt, "error", err)
		if attempt == amqpMaxRetries {
			return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * 1.5)
		if delay > amqpMaxDelay {
			delay = amqpMaxDelay
		}
	}
}

func (a *AMQP) Close() {
	if a.Channel != nil {
		_ = a.Channel.Close()
	}
	if a.Conn != nil {
		_ = a.Conn.Close()
	}
}
