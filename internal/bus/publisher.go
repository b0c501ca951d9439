package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"marketflow/internal/storage"
)

// One statement so backlog append and notify share the caller's transaction.
const publishSQL = `WITH backlog AS (
	INSERT INTO event_log (topic, payload) VALUES ($1, $2)
)
SELECT pg_notify($1, $2)`

// PgPublisher publishes through pg_notify on the storage layer. When the
// context carries an open transaction the notify rides on it and is dropped
// by the server on rollback.
type PgPublisher struct {
	db *storage.DB
}

// NewPgPublisher builds a publisher over the given database.
func NewPgPublisher(db *storage.DB) *PgPublisher {
	return &PgPublisher{db: db}
}

// Publish marshals payload as JSON and notifies the topic.
func (p *PgPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode %s payload: %w", topic, err)
	}
	if _, err := p.db.Exec(ctx, publishSQL, topic, string(body)); err != nil {
		return fmt.Errorf("bus: notify %s: %w", topic, err)
	}
	return nil
}
