package aggregator

import (
	"context"
	"log/slog"

	"marketflow/internal/saga"
)

// LogSink writes outcomes to the logger. Default sink when no external
// destination is configured.
type LogSink struct {
	Log *slog.Logger
}

// Success logs the completed instance.
func (s LogSink) Success(_ context.Context, t saga.Type, out saga.TransactionOutput) error {
	s.Log.Info("transaction completed",
		slog.String("type", string(t)),
		slog.String("tid", out.TID))
	return nil
}

// Poison logs the mark. The aggregator already logged the details; this only
// keeps the sink contract uniform.
func (s LogSink) Poison(_ context.Context, t saga.Type, mark saga.TransactionMark) error {
	s.Log.Info("transaction poisoned",
		slog.String("type", string(t)),
		slog.String("tid", mark.TID))
	return nil
}
