package message_broaker

import (
	"context"
	"encoding/json"
)

// Notification announces that jobs were added to a queue. Origin is the
// instance that published it, so a process can ignore its own echoes.
type Notification struct {
	Queue  string `json:"queue"`
	Origin string `json:"origin"`
}

// MessageBroker carries quick-poll notifications between processes.
// Delivery is best effort; a lost notification only delays pickup until
// the next poll.
type MessageBroker interface {
	Publish(ctx context.Context, n Notification) error
	Subscribe(ctx context.Context) (<-chan Notification, error)
	Close() error
}

const subscriberBuffer = 64

func encode(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

// relay decodes raw payloads into out until ctx ends or raw closes.
// Malformed payloads are dropped.
func relay(ctx context.Context, raw <-chan []byte, out chan<- Notification) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-raw:
			if !ok {
				return
			}
			var n Notification
			if err := json.Unmarshal(body, &n); err != nil || n.Queue == "" {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}
