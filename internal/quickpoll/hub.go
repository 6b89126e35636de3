// Package quickpoll wakes idle runners early when jobs are added. Signals
// are hints only: a lost one delays pickup until the next regular poll.
package quickpoll

import (
	"context"
	"log/slog"
	"sync"

	"github.com/RezaEskandarii/firejobs/internal/message_broaker"
)

// Hub holds one bounded, drop-oldest signal channel per queue.
type Hub struct {
	mu       sync.Mutex
	channels map[string]chan struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]chan struct{})}
}

// Register creates the channel of queue with room for capacity pending
// signals, normally the number of workers polling it. Registering a queue
// twice keeps the first channel.
func (h *Hub) Register(queue string, capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[queue]; !ok {
		h.channels[queue] = make(chan struct{}, capacity)
	}
}

// C returns the signal channel of queue, or nil when the queue has no
// runner in this process. Receiving from a nil channel blocks forever,
// which is the right behaviour inside a select.
func (h *Hub) C(queue string) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[queue]
}

// Notify signals queue. When the channel is full the oldest signal is
// dropped to make room. It never blocks.
func (h *Hub) Notify(queue string) bool {
	h.mu.Lock()
	ch, ok := h.channels[queue]
	h.mu.Unlock()
	if !ok {
		return false
	}

	for {
		select {
		case ch <- struct{}{}:
			return true
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Notifier signals the local hub and, when a broker is set, every other
// process subscribed to it.
type Notifier struct {
	hub    *Hub
	broker message_broaker.MessageBroker
	origin string
	logger *slog.Logger
}

func NewNotifier(hub *Hub, broker message_broaker.MessageBroker, origin string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{hub: hub, broker: broker, origin: origin, logger: logger}
}

func (n *Notifier) NotifyJobsAdded(ctx context.Context, queue string) {
	n.hub.Notify(queue)
	if n.broker == nil {
		return
	}
	if err := n.broker.Publish(ctx, message_broaker.Notification{Queue: queue, Origin: n.origin}); err != nil {
		n.logger.Warn("failed to publish quick-poll notification", "queue", queue, "error", err)
	}
}

// Bridge feeds notifications published by other processes into the local
// hub until ctx ends.
func (n *Notifier) Bridge(ctx context.Context) error {
	if n.broker == nil {
		return nil
	}
	sub, err := n.broker.Subscribe(ctx)
	if err != nil {
		return err
	}
	n.logger.Info("quick-poll bridge started", "origin", n.origin)
	for msg := range sub {
		if msg.Origin == n.origin {
			continue
		}
		n.hub.Notify(msg.Queue)
	}
	return nil
}
