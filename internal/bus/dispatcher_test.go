package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchRunsHandler(t *testing.T) {
	d := NewDispatcher(testLogger())
	var got note
	JSON(d, "notes", func(_ context.Context, n note) error {
		got = n
		return nil
	}, nil)

	d.Dispatch(context.Background(), Event{Topic: "notes", Payload: []byte(`{"id":7,"body":"hi"}`)})

	assert.Equal(t, note{ID: 7, Body: "hi"}, got)
}

func TestMalformedPayloadIsDroppedWithoutPoison(t *testing.T) {
	d := NewDispatcher(testLogger())
	var handled, poisoned bool
	JSON(d, "notes", func(_ context.Context, n note) error {
		handled = true
		return nil
	}, func(_ context.Context, n note) error {
		poisoned = true
		return nil
	})

	d.Dispatch(context.Background(), Event{Topic: "notes", Payload: []byte(`{nope`)})

	assert.False(t, handled)
	assert.False(t, poisoned)
}

func TestHandlerFailureRoutesDecodedPayloadToPoison(t *testing.T) {
	d := NewDispatcher(testLogger())
	var poisoned note
	JSON(d, "notes", func(_ context.Context, n note) error {
		return errors.New("boom")
	}, func(_ context.Context, n note) error {
		poisoned = n
		return nil
	})

	d.Dispatch(context.Background(), Event{Topic: "notes", Payload: []byte(`{"id":3,"body":"x"}`)})

	assert.Equal(t, note{ID: 3, Body: "x"}, poisoned)
}

func TestHandlerPanicIsRecoveredIntoPoison(t *testing.T) {
	d := NewDispatcher(testLogger())
	var poisoned bool
	JSON(d, "notes", func(_ context.Context, n note) error {
		panic("unexpected")
	}, func(_ context.Context, n note) error {
		poisoned = true
		return nil
	})

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), Event{Topic: "notes", Payload: []byte(`{"id":1}`)})
	})
	assert.True(t, poisoned)
}

func TestPoisonErrorIsSwallowed(t *testing.T) {
	d := NewDispatcher(testLogger())
	JSON(d, "notes", func(_ context.Context, n note) error {
		return errors.New("boom")
	}, func(_ context.Context, n note) error {
		return errors.New("poison also failed")
	})

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), Event{Topic: "notes", Payload: []byte(`{"id":1}`)})
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	d := NewDispatcher(testLogger())
	JSON(d, "notes", func(_ context.Context, n note) error { return nil }, nil)

	assert.Panics(t, func() {
		JSON(d, "notes", func(_ context.Context, n note) error { return nil }, nil)
	})
}

func TestTopicsAreSorted(t *testing.T) {
	d := NewDispatcher(testLogger())
	for _, topic := range []string{"zebra", "alpha", "mango"} {
		JSON(d, topic, func(_ context.Context, n note) error { return nil }, nil)
	}

	assert.Equal(t, []string{"alpha", "mango", "zebra"}, d.Topics())
	assert.True(t, d.Handles("mango"))
	assert.False(t, d.Handles("missing"))
}
