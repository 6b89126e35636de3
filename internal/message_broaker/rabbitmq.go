package message_broaker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ fans notifications out through a fanout exchange. Every
// subscriber binds its own exclusive, server-named queue, so each process
// sees every notification.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQ creates a new instance of RabbitMQ message broker.
func NewRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange %s: %w", exchange, err)
	}

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, n Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}
	return r.channel.PublishWithContext(ctx,
		r.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (r *RabbitMQ) Subscribe(ctx context.Context) (<-chan Notification, error) {
	q, err := r.channel.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq queue: %w", err)
	}
	if err := r.channel.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("rabbitmq bind: %w", err)
	}

	msgs, err := r.channel.ConsumeWithContext(ctx,
		q.Name,
		"",
		true,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}

	raw := make(chan []byte)
	go func() {
		defer close(raw)
		for msg := range msgs {
			select {
			case raw <- msg.Body:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan Notification, subscriberBuffer)
	go relay(ctx, raw, out)
	return out, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		_ = r.conn.Close()
		return err
	}
	return r.conn.Close()
}
