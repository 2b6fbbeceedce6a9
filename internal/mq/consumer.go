// README: RabbitMQ consumer feeding mutation events to pricing and cache invalidation.
package mq

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"chauffeur/internal/modules/ride"
)

// MutationHandler is anything that reacts to a ride mutation.
type MutationHandler interface {
	HandleMutation(ctx context.Context, m ride.Mutation) error
}

// Consumer reads the mutation queue with a single goroutine, so events for
// one ride are handled in publish order. Handler errors are logged and the
// delivery is acked anyway: failed recomputes are not retried automatically,
// the next qualifying mutation retriggers them.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	handlers []MutationHandler
	log      *slog.Logger
}

func NewConsumer(ch *amqp.Channel, queue string, log *slog.Logger, handlers ...MutationHandler) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{ch: ch, queue: queue, handlers: handlers, log: log}
}

func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	defer func() { _ = d.Ack(false) }()

	var m ride.Mutation
	if err := json.Unmarshal(d.Body, &m); err != nil {
		c.log.Error("drop undecodable mutation", "error", err)
		return
	}
	for _, h := range c.handlers {
		if err := h.HandleMutation(ctx, m); err != nil {
			c.log.Warn("mutation handler failed", "ride_id", string(m.Ride.ID), "error", err)
		}
	}
}
