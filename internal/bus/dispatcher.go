package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// Dispatcher maps topics to typed handlers. The registry is exhaustive:
// listeners are started from Topics(), so an unknown topic cannot arrive at
// runtime, and registering the same topic twice is a wiring error.
type Dispatcher struct {
	log    *slog.Logger
	routes map[string]func(ctx context.Context, ev Event)
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{log: log, routes: make(map[string]func(ctx context.Context, ev Event))}
}

// Topics returns every registered topic, sorted for stable startup order.
func (d *Dispatcher) Topics() []string {
	topics := make([]string, 0, len(d.routes))
	for t := range d.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Handles reports whether a handler is registered for the topic.
func (d *Dispatcher) Handles(topic string) bool {
	_, ok := d.routes[topic]
	return ok
}

// Dispatch decodes and runs the handler bound to the event's topic.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	route, ok := d.routes[ev.Topic]
	if !ok {
		// Unreachable when listeners are started from Topics(); kept for
		// dispatchers fed by an external queue.
		d.log.Warn("no handler registered", "topic", ev.Topic)
		return
	}
	route(ctx, ev)
}

func (d *Dispatcher) register(topic string, route func(ctx context.Context, ev Event)) {
	if _, dup := d.routes[topic]; dup {
		panic(fmt.Sprintf("bus: duplicate handler for topic %s", topic))
	}
	d.routes[topic] = route
}

// JSON binds a typed handler and its poison fallback to a topic.
//
// A payload that fails to decode is logged and dropped; malformed input is
// not a saga-relevant failure and produces no mark. A handler failure is
// routed to the poison handler with the same decoded payload; the poison
// handler's own error is logged and swallowed, never rethrown.
func JSON[T any](d *Dispatcher, topic string, handle func(context.Context, T) error, poison func(context.Context, T) error) {
	d.register(topic, func(ctx context.Context, ev Event) {
		var msg T
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			d.log.Error("dropping malformed payload", "topic", topic, "err", err)
			return
		}
		err := safeHandle(ctx, msg, handle)
		if err == nil {
			return
		}
		d.log.Error("handler failed", "topic", topic, "err", err)
		if poison == nil {
			return
		}
		if perr := safeHandle(ctx, msg, poison); perr != nil {
			d.log.Error("poison handler failed", "topic", topic, "err", perr)
		}
	})
}

func safeHandle[T any](ctx context.Context, msg T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bus: handler panic: %v", r)
		}
	}()
	return fn(ctx, msg)
}
