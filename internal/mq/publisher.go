// README: RabbitMQ publisher for ride mutation events.
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"chauffeur/internal/modules/ride"
)

type Publisher struct {
	ch    *amqp.Channel
	queue string
}

func NewPublisher(ch *amqp.Channel, queue string) *Publisher {
	return &Publisher{ch: ch, queue: queue}
}

func (p *Publisher) PublishMutation(ctx context.Context, m ride.Mutation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

var _ ride.Publisher = (*Publisher)(nil)
