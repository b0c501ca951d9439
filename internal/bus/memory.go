package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// MemoryBus is the in-process rendition of the bus used by the memory
// storage mode and by end-to-end tests: publish enqueues, delivery walks the
// relay routing table and every attached dispatcher.
type MemoryBus struct {
	log    *slog.Logger
	routes map[string][]string
	sinks  []*Dispatcher
	queue  chan Event
}

// NewMemoryBus builds a bus with the given fan-out routes.
func NewMemoryBus(routes map[string][]string, log *slog.Logger) *MemoryBus {
	return &MemoryBus{
		log:    log,
		routes: routes,
		queue:  make(chan Event, 4096),
	}
}

// Attach registers a dispatcher as a delivery target.
func (b *MemoryBus) Attach(d *Dispatcher) {
	b.sinks = append(b.sinks, d)
}

// Publish marshals the payload and enqueues it for delivery.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode %s payload: %w", topic, err)
	}
	select {
	case b.queue <- Event{Topic: topic, Payload: body, ReceivedAt: time.Now().UTC()}:
		return nil
	default:
		return fmt.Errorf("bus: memory queue full, dropping %s", topic)
	}
}

// Run delivers events until the context is cancelled.
func (b *MemoryBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.deliver(ctx, ev)
		}
	}
}

// Drain delivers synchronously until the queue is empty, including events
// published by the handlers it invokes. Test helper.
func (b *MemoryBus) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-b.queue:
			b.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (b *MemoryBus) deliver(ctx context.Context, ev Event) {
	for _, dst := range b.routes[ev.Topic] {
		if err := b.Publish(ctx, dst, json.RawMessage(ev.Payload)); err != nil {
			b.log.Error("memory relay failed", "from", ev.Topic, "to", dst, "err", err)
		}
	}
	for _, d := range b.sinks {
		if d.Handles(ev.Topic) {
			d.Dispatch(ctx, ev)
		}
	}
}
