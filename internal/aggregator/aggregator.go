package aggregator

import (
	"context"
	"log/slog"
	"time"

	"marketflow/internal/bus"
	"marketflow/internal/saga"
)

// Aggregator subscribes to every saga type's mark channel, stamps each mark
// with its observation time and routes it to the sink by status.
type Aggregator struct {
	sink Sink
	log  *slog.Logger
	now  func() time.Time
}

// New wires an aggregator.
func New(sink Sink, log *slog.Logger) *Aggregator {
	return &Aggregator{sink: sink, log: log, now: time.Now}
}

// Register binds every mark channel on the dispatcher. Marks carry no poison
// handler; a sink failure only logs and the mark is dropped.
func (a *Aggregator) Register(d *bus.Dispatcher) {
	for _, t := range saga.Types() {
		t := t
		bus.JSON(d, saga.MarkTopic(t), func(ctx context.Context, mark saga.TransactionMark) error {
			return a.process(ctx, t, mark)
		}, nil)
	}
}

func (a *Aggregator) process(ctx context.Context, t saga.Type, mark saga.TransactionMark) error {
	if mark.Status == saga.StatusSuccess {
		return a.sink.Success(ctx, t, saga.TransactionOutput{
			TID:        mark.TID,
			ObservedAt: a.now().UTC(),
		})
	}
	a.log.Warn("poison transaction",
		slog.String("type", string(t)),
		slog.String("tid", mark.TID),
		slog.String("status", string(mark.Status)),
		slog.String("source", mark.Source))
	return a.sink.Poison(ctx, t, mark)
}
