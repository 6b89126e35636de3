package message_broaker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis publishes notifications on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
}

func NewRedis(client *redis.Client, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, n Notification) error {
	body, err := encode(n)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan Notification, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}

	raw := make(chan []byte)
	go func() {
		defer close(raw)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case raw <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	out := make(chan Notification, subscriberBuffer)
	go relay(ctx, raw, out)
	return out, nil
}

// Close leaves the client open; it is owned by the caller.
func (r *Redis) Close() error {
	return nil
}
