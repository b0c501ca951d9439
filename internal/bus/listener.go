package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// Sink consumes events delivered by a listener.
type Sink interface {
	Dispatch(ctx context.Context, ev Event)
}

// Listener holds one durable subscription to a single topic. It blocks on
// bus receipt, dispatches synchronously, and on connection loss re-dials
// with bounded exponential backoff and resubscribes. Slow handler execution
// backpressures only this topic.
type Listener struct {
	dsn        string
	topic      string
	sink       Sink
	log        *slog.Logger
	backoff    time.Duration
	backoffMax time.Duration

	// Seams for the supervision loop tests.
	listen func(ctx context.Context, onReceive func()) error
	wait   func(ctx context.Context, d time.Duration) bool
}

// NewListener builds a listener for one topic.
func NewListener(dsn, topic string, sink Sink, log *slog.Logger, backoff, backoffMax time.Duration) *Listener {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	if backoffMax < backoff {
		backoffMax = 30 * time.Second
	}
	l := &Listener{dsn: dsn, topic: topic, sink: sink, log: log, backoff: backoff, backoffMax: backoffMax}
	l.listen = l.listenOnce
	l.wait = sleep
	return l
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Run listens until the context is cancelled. The retry delay doubles per
// consecutive failure up to the cap and resets on every successful receipt.
func (l *Listener) Run(ctx context.Context) {
	delay := l.backoff
	for {
		if ctx.Err() != nil {
			return
		}
		err := l.listen(ctx, func() { delay = l.backoff })
		if ctx.Err() != nil {
			return
		}
		l.log.Error("listener connection lost", "topic", l.topic, "err", err, "retry_in", delay)
		if !l.wait(ctx, delay) {
			return
		}
		delay *= 2
		if delay > l.backoffMax {
			delay = l.backoffMax
		}
	}
}

// listenOnce holds one connection for as long as it stays healthy. onReceive
// is invoked after every successful receipt so the caller can reset backoff.
func (l *Listener) listenOnce(ctx context.Context, onReceive func()) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.topic}.Sanitize()); err != nil {
		return err
	}
	l.log.Info("listening", "topic", l.topic)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		onReceive()
		l.sink.Dispatch(ctx, Event{
			Topic:      notification.Channel,
			Payload:    []byte(notification.Payload),
			ReceivedAt: time.Now().UTC(),
		})
	}
}

// StartListeners runs one listener goroutine per topic, all feeding the same
// sink, and returns a function that blocks until all of them have stopped.
func StartListeners(ctx context.Context, dsn string, topics []string, sink Sink, log *slog.Logger, backoff, backoffMax time.Duration) func() {
	done := make(chan struct{})
	remaining := len(topics)
	finished := make(chan struct{}, remaining)
	for _, topic := range topics {
		l := NewListener(dsn, topic, sink, log, backoff, backoffMax)
		go func() {
			l.Run(ctx)
			finished <- struct{}{}
		}()
	}
	go func() {
		for i := 0; i < remaining; i++ {
			<-finished
		}
		close(done)
	}()
	return func() { <-done }
}
