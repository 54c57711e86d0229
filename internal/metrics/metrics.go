// Package metrics provides atomic counters for diagnostics, surfaced
// read-only through internal/httpapi. Every counter here is written on
// the dispatcher's worker goroutine or a Publish caller's goroutine and
// read from the admin HTTP surface's goroutines, so all access goes
// through sync/atomic or a dedicated map mutex; no counter is ever
// touched from a real-time audio-callback path.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Metrics aggregates global and per-topic counters.
type Metrics struct {
	totalPublished uint64
	totalDelivered uint64
	totalPanics    uint64

	mu     sync.RWMutex
	topics map[string]*TopicMetrics
}

// TopicMetrics tracks counters scoped to a single topic.
type TopicMetrics struct {
	Name            string
	Published       uint64
	Delivered       uint64
	SubscriberPanic uint64
}

// New returns an empty Metrics.
func New() *Metrics {
	return &Metrics{topics: make(map[string]*TopicMetrics)}
}

func (m *Metrics) topicFor(topic string) *TopicMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	tm := m.topics[topic]
	if tm == nil {
		tm = &TopicMetrics{Name: topic}
		m.topics[topic] = tm
	}
	return tm
}

// IncPublished records a successfully enqueued publish for topic.
func (m *Metrics) IncPublished(topic string) {
	atomic.AddUint64(&m.totalPublished, 1)
	atomic.AddUint64(&m.topicFor(topic).Published, 1)
}

// IncDelivered records n subscriber deliveries for topic. The dispatcher
// passes the number of subscribers it called, including any whose
// OnMessage panicked (those are also counted by IncSubscriberPanic).
func (m *Metrics) IncDelivered(topic string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.totalDelivered, uint64(n))
	atomic.AddUint64(&m.topicFor(topic).Delivered, uint64(n))
}

// IncSubscriberPanic records a subscriber's OnMessage panicking during
// delivery for topic; the dispatcher recovers and continues.
func (m *Metrics) IncSubscriberPanic(topic string) {
	atomic.AddUint64(&m.totalPanics, 1)
	atomic.AddUint64(&m.topicFor(topic).SubscriberPanic, 1)
}

// Snapshot is a point-in-time, JSON-serializable copy of every counter,
// pushed by the /ws/diagnostics admin websocket.
type Snapshot struct {
	TotalPublished uint64                   `json:"total_published"`
	TotalDelivered uint64                   `json:"total_delivered"`
	TotalPanics    uint64                   `json:"total_subscriber_panics"`
	Topics         map[string]*TopicMetrics `json:"topics"`
}

// Snapshot returns a copy of every counter currently tracked.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make(map[string]*TopicMetrics, len(m.topics))
	for name, tm := range m.topics {
		topics[name] = snapshotTopic(tm)
	}

	return Snapshot{
		TotalPublished: atomic.LoadUint64(&m.totalPublished),
		TotalDelivered: atomic.LoadUint64(&m.totalDelivered),
		TotalPanics:    atomic.LoadUint64(&m.totalPanics),
		Topics:         topics,
	}
}

// TopicSnapshot returns a copy of a single topic's counters, or nil if
// the topic has never been published to.
func (m *Metrics) TopicSnapshot(topic string) *TopicMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tm, ok := m.topics[topic]
	if !ok {
		return nil
	}
	return snapshotTopic(tm)
}

// snapshotTopic copies tm field by field, loading each counter with
// atomic.LoadUint64 rather than copying the struct: the counters are
// incremented with atomic.AddUint64 outside of m.mu, so a whole-struct
// copy taken under m.mu would race with those unlocked writes.
func snapshotTopic(tm *TopicMetrics) *TopicMetrics {
	return &TopicMetrics{
		Name:            tm.Name,
		Published:       atomic.LoadUint64(&tm.Published),
		Delivered:       atomic.LoadUint64(&tm.Delivered),
		SubscriberPanic: atomic.LoadUint64(&tm.SubscriberPanic),
	}
}
