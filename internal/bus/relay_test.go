package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayFansOutVerbatim(t *testing.T) {
	rec := &Recorder{}
	r := NewRelay(rec, map[string][]string{
		"payment_confirmed": {"stock_payment_confirmed_channel", "order_payment_confirmed_channel"},
	}, testLogger())

	payload := []byte(`{"order_id":1}`)
	r.Dispatch(context.Background(), Event{Topic: "payment_confirmed", Payload: payload})

	for _, dst := range []string{"stock_payment_confirmed_channel", "order_payment_confirmed_channel"} {
		got := rec.ByTopic(dst)
		require.Len(t, got, 1, dst)
		assert.JSONEq(t, string(payload), string(got[0]))
	}
}

func TestRelayIgnoresUnroutedTopics(t *testing.T) {
	rec := &Recorder{}
	r := NewRelay(rec, map[string][]string{"checkout": {"stock_checkout_update_channel"}}, testLogger())

	r.Dispatch(context.Background(), Event{Topic: "unrelated", Payload: []byte(`{}`)})

	assert.Empty(t, rec.Events())
}

func TestMemoryBusRelaysAndDispatches(t *testing.T) {
	mb := NewMemoryBus(map[string][]string{"checkout": {"stock_checkout_update_channel"}}, testLogger())
	d := NewDispatcher(testLogger())
	var got note
	JSON(d, "stock_checkout_update_channel", func(_ context.Context, n note) error {
		got = n
		return nil
	}, nil)
	mb.Attach(d)

	ctx := context.Background()
	require.NoError(t, mb.Publish(ctx, "checkout", note{ID: 4, Body: "go"}))
	mb.Drain(ctx)

	assert.Equal(t, note{ID: 4, Body: "go"}, got)
}

func TestMemoryBusDrainFollowsHandlerPublishes(t *testing.T) {
	mb := NewMemoryBus(nil, testLogger())
	d := NewDispatcher(testLogger())
	var final note
	JSON(d, "first", func(ctx context.Context, n note) error {
		return mb.Publish(ctx, "second", note{ID: n.ID + 1})
	}, nil)
	JSON(d, "second", func(_ context.Context, n note) error {
		final = n
		return nil
	}, nil)
	mb.Attach(d)

	ctx := context.Background()
	require.NoError(t, mb.Publish(ctx, "first", note{ID: 1}))
	mb.Drain(ctx)

	assert.Equal(t, 2, final.ID)
}

func TestRecorderFiltersByTopic(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, "a", note{ID: 1}))
	require.NoError(t, rec.Publish(ctx, "b", note{ID: 2}))
	require.NoError(t, rec.Publish(ctx, "a", note{ID: 3}))

	got := rec.ByTopic("a")
	require.Len(t, got, 2)
	var n note
	require.NoError(t, json.Unmarshal(got[1], &n))
	assert.Equal(t, 3, n.ID)
}
