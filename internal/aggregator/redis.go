package aggregator

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"marketflow/internal/saga"
)

// RedisSink appends outcomes to per-type Redis streams, one stream for
// completions and one for poison marks.
type RedisSink struct {
	client redis.UniversalClient
}

// NewRedisSink builds a sink on an existing client.
func NewRedisSink(client redis.UniversalClient) *RedisSink {
	return &RedisSink{client: client}
}

// Success appends the completed instance to marks:{type}:success.
func (s *RedisSink) Success(ctx context.Context, t saga.Type, out saga.TransactionOutput) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "marks:" + string(t) + ":success",
		Values: map[string]any{
			"tid":         out.TID,
			"observed_at": out.ObservedAt.Format(time.RFC3339Nano),
		},
	}).Err()
}

// Poison appends the mark to marks:{type}:poison.
func (s *RedisSink) Poison(ctx context.Context, t saga.Type, mark saga.TransactionMark) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "marks:" + string(t) + ":poison",
		Values: map[string]any{
			"tid":        mark.TID,
			"subject_id": mark.SubjectID,
			"status":     string(mark.Status),
			"source":     mark.Source,
		},
	}).Err()
}
