// Package registry implements topic-keyed provider and subscriber
// indices: two independent maps, each guarded by its own mutex,
// holding weak (non-owning) handles so a host module's destructor
// never has to drive broker cleanup.
//
// Go gained true GC-integrated weak pointers in the standard library
// with the weak package (Go 1.24). Building a weak.Pointer[T] needs
// the concrete pointee type T, which would normally be erased once a
// caller's module is boxed into the Provider or Subscriber interface.
// Registration is therefore exposed as package-level generic functions
// constrained with the "*E core type" idiom (P interface{ *E; Provider })
// so the concrete type is recovered at the call site and a real
// weak.Pointer[E] can be constructed — no reflection, no unsafe, no
// hand-rolled finalizer bookkeeping.
package registry

import (
	"sync"
	"weak"

	"github.com/rackmcp/mcpbroker/internal/message"
)

// Provider is the capability a topic provider module implements: the
// ability to report which topics it offers.
type Provider interface {
	ProvidedTopics() []string
}

// Subscriber is the capability a topic subscriber module implements:
// the ability to receive a published message. OnMessage is invoked on
// the dispatcher's worker goroutine and must not block. msg is shared
// with every other subscriber of the same delivery and must not be
// mutated.
type Subscriber interface {
	OnMessage(msg *message.Message)
}

type providerHandle struct {
	upgrade func() (Provider, bool)
}

type subscriberHandle struct {
	upgrade func() (Subscriber, bool)
}

func newProviderHandle[E any, P interface {
	*E
	Provider
}](p P) providerHandle {
	wp := weak.Make((*E)(p))
	return providerHandle{
		upgrade: func() (Provider, bool) {
			v := wp.Value()
			if v == nil {
				return nil, false
			}
			return P(v), true
		},
	}
}

func newSubscriberHandle[E any, S interface {
	*E
	Subscriber
}](s S) subscriberHandle {
	ws := weak.Make((*E)(s))
	return subscriberHandle{
		upgrade: func() (Subscriber, bool) {
			v := ws.Value()
			if v == nil {
				return nil, false
			}
			return S(v), true
		},
	}
}

// Registry holds the two independent topic indices. The zero value is
// not usable; construct with New.
type Registry struct {
	provMu    sync.Mutex
	providers map[string][]providerHandle

	subMu       sync.Mutex
	subscribers map[string][]subscriberHandle
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		providers:   make(map[string][]providerHandle),
		subscribers: make(map[string][]subscriberHandle),
	}
}

// RegisterProvider adds p as a provider of topic. Returns false if
// topic is empty, p is nil, or p is already registered for topic.
func RegisterProvider[E any, P interface {
	*E
	Provider
}](r *Registry, topic string, p P) bool {
	var zero P
	if topic == "" || p == zero {
		return false
	}
	asProvider := Provider(p)

	r.provMu.Lock()
	defer r.provMu.Unlock()

	bucket, live := purgeProviders(r.providers[topic])
	for _, existing := range live {
		if existing == asProvider {
			r.providers[topic] = bucket
			return false
		}
	}
	bucket = append(bucket, newProviderHandle[E, P](p))
	r.providers[topic] = bucket
	return true
}

// UnregisterProvider removes p from topic's provider set. Returns
// true if p was present and removed.
func UnregisterProvider[E any, P interface {
	*E
	Provider
}](r *Registry, topic string, p P) bool {
	var zero P
	if topic == "" || p == zero {
		return false
	}
	asProvider := Provider(p)

	r.provMu.Lock()
	defer r.provMu.Unlock()

	bucket, ok := r.providers[topic]
	if !ok {
		return false
	}

	removed := false
	kept := bucket[:0]
	for _, h := range bucket {
		existing, ok := h.upgrade()
		if !ok {
			continue
		}
		if !removed && existing == asProvider {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) == 0 {
		delete(r.providers, topic)
	} else {
		r.providers[topic] = kept
	}
	return removed
}

// SubscribeTopic adds s as a subscriber of topic. Returns false if
// topic is empty, s is nil, or s is already subscribed to topic.
func SubscribeTopic[E any, S interface {
	*E
	Subscriber
}](r *Registry, topic string, s S) bool {
	var zero S
	if topic == "" || s == zero {
		return false
	}
	asSubscriber := Subscriber(s)

	r.subMu.Lock()
	defer r.subMu.Unlock()

	bucket, live := purgeSubscribers(r.subscribers[topic])
	for _, existing := range live {
		if existing == asSubscriber {
			r.subscribers[topic] = bucket
			return false
		}
	}
	bucket = append(bucket, newSubscriberHandle[E, S](s))
	r.subscribers[topic] = bucket
	return true
}

// UnsubscribeTopic removes s from topic's subscriber set. Returns
// true if s was present and removed.
func UnsubscribeTopic[E any, S interface {
	*E
	Subscriber
}](r *Registry, topic string, s S) bool {
	var zero S
	if topic == "" || s == zero {
		return false
	}
	asSubscriber := Subscriber(s)

	r.subMu.Lock()
	defer r.subMu.Unlock()

	bucket, ok := r.subscribers[topic]
	if !ok {
		return false
	}

	removed := false
	kept := bucket[:0]
	for _, h := range bucket {
		existing, ok := h.upgrade()
		if !ok {
			continue
		}
		if !removed && existing == asSubscriber {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) == 0 {
		delete(r.subscribers, topic)
	} else {
		r.subscribers[topic] = kept
	}
	return removed
}

// UnsubscribeAll removes s from every topic it is subscribed to.
// Returns true if at least one topic had s removed.
func UnsubscribeAll[E any, S interface {
	*E
	Subscriber
}](r *Registry, s S) bool {
	var zero S
	if s == zero {
		return false
	}
	asSubscriber := Subscriber(s)

	r.subMu.Lock()
	defer r.subMu.Unlock()

	removedAny := false
	for topic, bucket := range r.subscribers {
		kept := bucket[:0]
		for _, h := range bucket {
			existing, ok := h.upgrade()
			if !ok {
				continue
			}
			if existing == asSubscriber {
				removedAny = true
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(r.subscribers, topic)
		} else {
			r.subscribers[topic] = kept
		}
	}
	return removedAny
}

// AvailableTopics returns every topic with at least one live
// registered provider. Ordering is unspecified. Expired provider
// handles are purged as a side effect.
func (r *Registry) AvailableTopics() []string {
	r.provMu.Lock()
	defer r.provMu.Unlock()

	topics := make([]string, 0, len(r.providers))
	for topic, bucket := range r.providers {
		kept, live := purgeProviders(bucket)
		if len(live) == 0 {
			delete(r.providers, topic)
			continue
		}
		r.providers[topic] = kept
		topics = append(topics, topic)
	}
	return topics
}

// FindProviders returns every live provider registered for topic.
// Expired handles are purged as a side effect; a topic left with no
// live providers is removed from the index.
func (r *Registry) FindProviders(topic string) []Provider {
	r.provMu.Lock()
	defer r.provMu.Unlock()

	bucket, ok := r.providers[topic]
	if !ok {
		return nil
	}
	kept, live := purgeProviders(bucket)
	if len(live) == 0 {
		delete(r.providers, topic)
		return nil
	}
	r.providers[topic] = kept
	return live
}

// FindSubscribers returns every live subscriber registered for topic.
// Expired handles are purged as a side effect; a topic left with no
// live subscribers is removed from the index. Called by the dispatcher
// on the delivery hot path, and by diagnostics and tests.
func (r *Registry) FindSubscribers(topic string) []Subscriber {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	bucket, ok := r.subscribers[topic]
	if !ok {
		return nil
	}
	kept, live := purgeSubscribers(bucket)
	if len(live) == 0 {
		delete(r.subscribers, topic)
		return nil
	}
	r.subscribers[topic] = kept
	return live
}

func purgeProviders(bucket []providerHandle) (kept []providerHandle, live []Provider) {
	kept = bucket[:0]
	live = make([]Provider, 0, len(bucket))
	for _, h := range bucket {
		if p, ok := h.upgrade(); ok {
			kept = append(kept, h)
			live = append(live, p)
		}
	}
	return kept, live
}

func purgeSubscribers(bucket []subscriberHandle) (kept []subscriberHandle, live []Subscriber) {
	kept = bucket[:0]
	live = make([]Subscriber, 0, len(bucket))
	for _, h := range bucket {
		if s, ok := h.upgrade(); ok {
			kept = append(kept, h)
			live = append(live, s)
		}
	}
	return kept, live
}
