// Package broker is the public facade a host module imports: register
// as a provider, subscribe to topics, publish messages, and query what
// is currently available. Everything underneath — the SPSC ring
// buffer, the weak-reference registry, the FIFO dispatcher — lives in
// internal packages; this package wires them together the way the
// teacher's root main.go wires its registry, topic manager, and
// subscriber services together.
package broker

import (
	"fmt"
	"log"
	"sync"

	"github.com/rackmcp/mcpbroker/internal/codec"
	"github.com/rackmcp/mcpbroker/internal/config"
	"github.com/rackmcp/mcpbroker/internal/dispatch"
	"github.com/rackmcp/mcpbroker/internal/message"
	"github.com/rackmcp/mcpbroker/internal/metrics"
	"github.com/rackmcp/mcpbroker/internal/registry"
)

// Provider and Subscriber are re-exported so a host module never needs
// to import internal/registry directly. Message is re-exported so a
// Subscriber implementation never needs to import internal/message
// directly either.
type Provider = registry.Provider
type Subscriber = registry.Subscriber
type Message = message.Message

// Broker owns the registry, the dispatcher, and the metrics the admin
// HTTP surface reads. The zero value is not usable; construct with
// New, or use Default for the process-wide singleton.
type Broker struct {
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	logger     *log.Logger

	mu       sync.Mutex
	shutdown bool
}

// New builds and starts a Broker. A nil cfg uses config defaults; a
// nil logger defaults to log.Default().
func New(cfg *config.Config, logger *log.Logger) *Broker {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		cfg = config.New()
	}

	m := metrics.New()
	reg := registry.New()
	d := dispatch.New(reg, m, logger, cfg.DispatchWarnThreshold)
	d.Start()

	return &Broker{
		reg:        reg,
		dispatcher: d,
		metrics:    m,
		logger:     logger,
	}
}

// Version reports the broker's protocol version.
func (b *Broker) Version() int { return 1 }

// Publish encodes nothing itself — payload is already-serialized
// bytes tagged with format — and hands the resulting Message to the
// dispatcher for asynchronous, fire-and-forget delivery.
func (b *Broker) Publish(topic string, senderID int, format string, payload []byte) error {
	b.mu.Lock()
	shutdown := b.shutdown
	b.mu.Unlock()
	if shutdown {
		return ErrShutdown
	}

	msg := message.New(topic, senderID, format, payload)
	if !msg.Valid() {
		return ErrInvalidMessage
	}
	if !b.dispatcher.Publish(msg) {
		return ErrShutdown
	}
	return nil
}

// PublishValue encodes v with the codec registered for format, then
// publishes the result exactly as Publish would. A failure to encode v
// (an unregistered format, or a value outside the kinds the codec
// accepts) is reported as ErrSerialization, wrapping the underlying
// codec error.
func (b *Broker) PublishValue(topic string, senderID int, format string, v any) error {
	c, ok := codec.ByFormat(format)
	if !ok {
		return fmt.Errorf("%w: no codec registered for format %q", ErrSerialization, format)
	}
	payload, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return b.Publish(topic, senderID, format, payload)
}

// AvailableTopics returns every topic with at least one live
// registered provider.
func (b *Broker) AvailableTopics() []string {
	return b.reg.AvailableTopics()
}

// FindProviders returns every live provider registered for topic.
func (b *Broker) FindProviders(topic string) []Provider {
	return b.reg.FindProviders(topic)
}

// FindSubscribers returns every live subscriber registered for topic,
// exposed for diagnostics; the dispatcher calls the registry's
// FindSubscribers directly on the delivery hot path rather than
// through the broker facade.
func (b *Broker) FindSubscribers(topic string) []Subscriber {
	return b.reg.FindSubscribers(topic)
}

// Metrics exposes the counters backing the admin HTTP surface.
func (b *Broker) Metrics() *metrics.Metrics {
	return b.metrics
}

// Shutdown stops accepting new publishes and waits for the dispatcher
// worker to drain and exit. Safe to call more than once.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	b.dispatcher.Shutdown()
}

// RegisterProvider adds p as a provider of topic. Go has no generic
// methods, so this — and Unregister/Subscribe/Unsubscribe/
// UnsubscribeAll below — are package-level generic functions taking
// the Broker as their first argument; see internal/registry's package
// doc for why the type parameters are needed to build a real
// weak.Pointer to p.
func RegisterProvider[E any, P interface {
	*E
	Provider
}](b *Broker, topic string, p P) bool {
	return registry.RegisterProvider[E, P](b.reg, topic, p)
}

// UnregisterProvider removes p from topic's provider set.
func UnregisterProvider[E any, P interface {
	*E
	Provider
}](b *Broker, topic string, p P) bool {
	return registry.UnregisterProvider[E, P](b.reg, topic, p)
}

// Subscribe adds s as a subscriber of topic.
func Subscribe[E any, S interface {
	*E
	Subscriber
}](b *Broker, topic string, s S) bool {
	return registry.SubscribeTopic[E, S](b.reg, topic, s)
}

// Unsubscribe removes s from topic's subscriber set.
func Unsubscribe[E any, S interface {
	*E
	Subscriber
}](b *Broker, topic string, s S) bool {
	return registry.UnsubscribeTopic[E, S](b.reg, topic, s)
}

// UnsubscribeAll removes s from every topic it is subscribed to.
func UnsubscribeAll[E any, S interface {
	*E
	Subscriber
}](b *Broker, s S) bool {
	return registry.UnsubscribeAll[E, S](b.reg, s)
}

var (
	defaultOnce   sync.Once
	defaultBroker *Broker
)

// Default returns the process-wide singleton Broker, built lazily on
// first use with sync.Once rather than a hand-rolled double-checked
// lock.
func Default() *Broker {
	defaultOnce.Do(func() {
		defaultBroker = New(config.New(), nil)
	})
	return defaultBroker
}
