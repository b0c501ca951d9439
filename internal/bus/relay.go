package bus

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Relay fans a canonical topic out to the per-service input channels that
// carry it. Each service keeps its own `{domain}_{eventKind}_channel`
// subscription while producers publish once on the canonical name.
type Relay struct {
	pub    Publisher
	routes map[string][]string
	log    *slog.Logger
}

// NewRelay builds a relay over the given routing table.
func NewRelay(pub Publisher, routes map[string][]string, log *slog.Logger) *Relay {
	return &Relay{pub: pub, routes: routes, log: log}
}

// Topics returns the canonical source topics the relay subscribes to.
func (r *Relay) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for t := range r.routes {
		topics = append(topics, t)
	}
	return topics
}

// Dispatch republishes the payload verbatim on every destination channel.
func (r *Relay) Dispatch(ctx context.Context, ev Event) {
	for _, dst := range r.routes[ev.Topic] {
		if err := r.pub.Publish(ctx, dst, json.RawMessage(ev.Payload)); err != nil {
			r.log.Error("relay publish failed", "from", ev.Topic, "to", dst, "err", err)
		}
	}
}
