package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackmcp/mcpbroker/broker"
	"github.com/rackmcp/mcpbroker/internal/codec"
	"github.com/rackmcp/mcpbroker/internal/config"
)

func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	cfg := config.New()
	cfg.DispatchWarnThreshold = 32
	b := broker.New(cfg, nil)
	t.Cleanup(b.Shutdown)
	return b
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestReferenceSubscriberReceivesAndProcesses(t *testing.T) {
	b := newTestBroker(t)
	sub := NewReferenceSubscriber(b, 64)
	sub.OnAdd()
	defer sub.OnRemove()

	payload, err := codec.Msgpack.Marshal(0.75)
	require.NoError(t, err)
	require.NoError(t, b.Publish("reference/parameter1", 1, codec.FormatMsgpack, payload))

	waitFor(t, func() bool {
		received, _, _ := sub.Stats()
		return received == 1
	})

	sub.Process()
	assert.InDelta(t, 0.75, sub.Parameter(1), 1e-9)
}

func TestReferenceSubscriberPreset(t *testing.T) {
	b := newTestBroker(t)
	sub := NewReferenceSubscriber(b, 64)
	sub.OnAdd()
	defer sub.OnRemove()

	payload, err := codec.Msgpack.Marshal("bright-pad")
	require.NoError(t, err)
	require.NoError(t, b.Publish("reference/preset", 1, codec.FormatMsgpack, payload))

	waitFor(t, func() bool {
		received, _, _ := sub.Stats()
		return received == 1
	})
	sub.Process()
	assert.Equal(t, "bright-pad", sub.Preset())
}

func TestReferenceSubscriberParameterArray(t *testing.T) {
	b := newTestBroker(t)
	sub := NewReferenceSubscriber(b, 64)
	sub.OnAdd()
	defer sub.OnRemove()

	payload, err := codec.Msgpack.Marshal([]float64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, b.Publish("reference/parameters", 1, codec.FormatMsgpack, payload))

	waitFor(t, func() bool {
		received, _, _ := sub.Stats()
		return received == 1
	})
	sub.Process()
	assert.Equal(t, []float64{1, 2, 3}, sub.ParameterArray())
}

func TestProcessDrainIsBounded(t *testing.T) {
	b := newTestBroker(t)
	sub := NewReferenceSubscriber(b, 64)
	sub.OnAdd()
	defer sub.OnRemove()

	for i := 0; i < maxDrainPerBlock+5; i++ {
		payload, err := codec.Msgpack.Marshal(float64(i))
		require.NoError(t, err)
		require.NoError(t, b.Publish("reference/parameter1", 1, codec.FormatMsgpack, payload))
	}

	waitFor(t, func() bool {
		received, _, _ := sub.Stats()
		return received == int64(maxDrainPerBlock+5)
	})

	sub.Process()
	_, processed, _ := sub.Stats()
	assert.Equal(t, int64(maxDrainPerBlock), processed, "one Process call must drain at most maxDrainPerBlock items")
}

func TestOnRemoveStopsDelivery(t *testing.T) {
	b := newTestBroker(t)
	sub := NewReferenceSubscriber(b, 64)
	sub.OnAdd()
	sub.OnRemove()

	payload, err := codec.Msgpack.Marshal(1.0)
	require.NoError(t, err)
	require.NoError(t, b.Publish("reference/parameter1", 1, codec.FormatMsgpack, payload))

	time.Sleep(20 * time.Millisecond)
	received, _, _ := sub.Stats()
	assert.Equal(t, int64(0), received)
}
