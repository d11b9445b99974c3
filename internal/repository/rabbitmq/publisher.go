package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FanOutPublisher broadcasts to a fanout exchange; every queue bound to it
// receives its own copy of each message.
type FanOutPublisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewFanOutPublisher(conn *amqp.Connection, exchange string) (*FanOutPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &FanOutPublisher{
		channel:  ch,
		exchange: exchange,
	}, nil
}

func (p *FanOutPublisher) Publish(ctx context.Context, body json.RawMessage) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
