package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Recorder is a Publisher that captures events instead of sending them.
// Test double for saga step services.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the marshalled payload.
func (r *Recorder) Publish(_ context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode %s payload: %w", topic, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Payload: body})
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByTopic returns the payloads published on one topic, in order.
func (r *Recorder) ByTopic(topic string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, ev := range r.events {
		if ev.Topic == topic {
			out = append(out, ev.Payload)
		}
	}
	return out
}
