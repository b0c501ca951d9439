// Package bus implements the relational event bus: publishing through the
// database notify primitive, per-topic blocking listeners, and the typed
// dispatcher with its poison-event fallback.
package bus

import (
	"context"
	"time"
)

// Event is an immutable, topic-tagged payload received from the bus.
type Event struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Publisher appends an event to the durable notification backlog and wakes
// blocked subscribers on the topic. Implementations must route through the
// caller's open transaction when one is present in the context, so that a
// rolled-back mutation never results in a published event.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}
