// Package adapter provides a reference subscriber module: a worked
// example of how a host module bridges the broker's async delivery
// pipeline onto a real-time processing loop. OnMessage decodes on the
// dispatcher's worker goroutine and pushes onto a private SPSC ring
// buffer; Process drains a bounded number of items per call from
// whatever goroutine plays the role of the audio thread, then updates
// mutex-guarded parameter state that other, non-real-time readers can
// query.
package adapter

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rackmcp/mcpbroker/broker"
	"github.com/rackmcp/mcpbroker/internal/codec"
	"github.com/rackmcp/mcpbroker/internal/message"
	"github.com/rackmcp/mcpbroker/internal/ringbuffer"
)

// maxDrainPerBlock bounds how many queued values Process consumes per
// call, so a burst of publishes never stalls the caller's processing
// block. Tunable, not exposed via config.
const maxDrainPerBlock = 10

// Default topics this reference subscriber subscribes to in OnAdd.
var defaultTopics = []string{
	"reference/parameter1",
	"reference/parameter2",
	"reference/preset",
	"reference/parameters",
}

type receivedValue struct {
	topic string
	value any
}

// ReferenceSubscriber is a minimal example of a broker.Subscriber:
// four topics carrying two floats, a string, and a float slice,
// fanned into parameter state a caller can poll from any goroutine.
type ReferenceSubscriber struct {
	id uuid.UUID
	b  *broker.Broker

	queue *ringbuffer.Ring[receivedValue]

	paramMu        sync.Mutex
	parameter1     float64
	parameter2     float64
	preset         string
	parameterArray []float64

	totalReceived  atomic.Int64
	processed      atomic.Int64
	queueOverflows atomic.Int64
}

// NewReferenceSubscriber builds an adapter bound to b with a private
// ring buffer of the given capacity.
func NewReferenceSubscriber(b *broker.Broker, ringCapacity int) *ReferenceSubscriber {
	return &ReferenceSubscriber{
		id:    uuid.New(),
		b:     b,
		queue: ringbuffer.New[receivedValue](ringCapacity),
	}
}

// ID is a stable diagnostic identifier for this adapter instance,
// minted once at construction.
func (s *ReferenceSubscriber) ID() uuid.UUID { return s.id }

// OnAdd subscribes to every default topic. Call from a host module's
// lifecycle add hook, never from a destructor: subscribing during
// teardown risks touching a partially-destroyed self by the time a
// delivery lands.
func (s *ReferenceSubscriber) OnAdd() {
	for _, topic := range defaultTopics {
		broker.Subscribe[ReferenceSubscriber](s.b, topic, s)
	}
}

// OnRemove unsubscribes from every topic this adapter is currently
// subscribed to.
func (s *ReferenceSubscriber) OnRemove() {
	broker.UnsubscribeAll[ReferenceSubscriber](s.b, s)
}

// OnMessage implements broker.Subscriber. It runs on the dispatcher's
// worker goroutine: decode here, never touch parameter state directly,
// and never block. msg is shared with any sibling subscriber of the
// same delivery and must not be mutated.
func (s *ReferenceSubscriber) OnMessage(msg *message.Message) {
	s.totalReceived.Add(1)

	c, ok := codec.ByFormat(msg.Format)
	if !ok {
		return
	}

	var value any
	switch msg.Topic {
	case "reference/parameter1", "reference/parameter2":
		var f float64
		if err := c.Unmarshal(msg.Payload, &f); err != nil {
			return
		}
		value = f
	case "reference/preset":
		var str string
		if err := c.Unmarshal(msg.Payload, &str); err != nil {
			return
		}
		value = str
	case "reference/parameters":
		var arr []float64
		if err := c.Unmarshal(msg.Payload, &arr); err != nil {
			return
		}
		value = arr
	default:
		return
	}

	if !s.queue.Push(receivedValue{topic: msg.Topic, value: value}) {
		s.queueOverflows.Add(1)
	}
}

// Process drains up to maxDrainPerBlock queued values, applying each
// to parameter state under paramMu. Intended to be called once per
// processing block from whatever goroutine plays the audio-thread
// role; it never blocks and never allocates on an empty queue.
func (s *ReferenceSubscriber) Process() {
	for i := 0; i < maxDrainPerBlock; i++ {
		rv, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.processed.Add(1)
		s.apply(rv)
	}
}

func (s *ReferenceSubscriber) apply(rv receivedValue) {
	s.paramMu.Lock()
	defer s.paramMu.Unlock()

	switch rv.topic {
	case "reference/parameter1":
		s.parameter1 = rv.value.(float64)
	case "reference/parameter2":
		s.parameter2 = rv.value.(float64)
	case "reference/preset":
		s.preset = rv.value.(string)
	case "reference/parameters":
		s.parameterArray = rv.value.([]float64)
	}
}

// Parameter returns the current value of parameter 1 or 2; any other
// index returns 0.
func (s *ReferenceSubscriber) Parameter(index int) float64 {
	s.paramMu.Lock()
	defer s.paramMu.Unlock()
	switch index {
	case 1:
		return s.parameter1
	case 2:
		return s.parameter2
	default:
		return 0
	}
}

// Preset returns the most recently received preset name.
func (s *ReferenceSubscriber) Preset() string {
	s.paramMu.Lock()
	defer s.paramMu.Unlock()
	return s.preset
}

// ParameterArray returns a copy of the most recently received
// parameter array.
func (s *ReferenceSubscriber) ParameterArray() []float64 {
	s.paramMu.Lock()
	defer s.paramMu.Unlock()
	out := make([]float64, len(s.parameterArray))
	copy(out, s.parameterArray)
	return out
}

// Stats returns the diagnostic counters accumulated so far.
func (s *ReferenceSubscriber) Stats() (received, processed, overflows int64) {
	return s.totalReceived.Load(), s.processed.Load(), s.queueOverflows.Load()
}
