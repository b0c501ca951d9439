// Package aggregator collects the transaction marks the saga steps emit and
// forwards them to pluggable sinks for monitoring.
package aggregator

import (
	"context"

	"marketflow/internal/saga"
)

// Sink receives aggregated saga outcomes. Success gets completed instances,
// Poison gets the ERROR and ABORT marks verbatim.
type Sink interface {
	Success(ctx context.Context, t saga.Type, out saga.TransactionOutput) error
	Poison(ctx context.Context, t saga.Type, mark saga.TransactionMark) error
}

// TypedOutput pairs a completed instance with its saga type.
type TypedOutput struct {
	Type   saga.Type
	Output saga.TransactionOutput
}

// TypedMark pairs a poison mark with its saga type.
type TypedMark struct {
	Type saga.Type
	Mark saga.TransactionMark
}

// ChannelSink delivers outcomes on plain channels. The channels are supplied
// by the embedding program, typically a benchmark driver or a test.
type ChannelSink struct {
	Successes chan<- TypedOutput
	Poisons   chan<- TypedMark
}

// Success sends the completed instance; drops it when no channel is set.
func (s ChannelSink) Success(ctx context.Context, t saga.Type, out saga.TransactionOutput) error {
	if s.Successes == nil {
		return nil
	}
	select {
	case s.Successes <- TypedOutput{Type: t, Output: out}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poison sends the mark; drops it when no channel is set.
func (s ChannelSink) Poison(ctx context.Context, t saga.Type, mark saga.TransactionMark) error {
	if s.Poisons == nil {
		return nil
	}
	select {
	case s.Poisons <- TypedMark{Type: t, Mark: mark}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tee fans every outcome out to all sinks, stopping at the first failure.
type Tee []Sink

// Success forwards to each sink in order.
func (t Tee) Success(ctx context.Context, typ saga.Type, out saga.TransactionOutput) error {
	for _, s := range t {
		if err := s.Success(ctx, typ, out); err != nil {
			return err
		}
	}
	return nil
}

// Poison forwards to each sink in order.
func (t Tee) Poison(ctx context.Context, typ saga.Type, mark saga.TransactionMark) error {
	for _, s := range t {
		if err := s.Poison(ctx, typ, mark); err != nil {
			return err
		}
	}
	return nil
}
