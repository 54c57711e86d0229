// Package dispatch implements the asynchronous FIFO delivery pipeline:
// publishers append to an unbounded FIFO under a queue mutex and
// signal a condition variable; a single
// worker goroutine wakes, pops one message, releases the lock, then
// fans it out to every live subscriber of its topic. A panic in one
// subscriber's OnMessage is isolated so it neither kills the worker
// nor blocks delivery to the remaining subscribers.
package dispatch

import (
	"log"
	"sync"

	"github.com/rackmcp/mcpbroker/internal/message"
	"github.com/rackmcp/mcpbroker/internal/metrics"
	"github.com/rackmcp/mcpbroker/internal/registry"
)

// Dispatcher owns the publish queue and the single worker goroutine
// that drains it. The zero value is not usable; construct with New.
type Dispatcher struct {
	reg     *registry.Registry
	metrics *metrics.Metrics
	logger  *log.Logger

	warnThreshold int
	warned        bool

	mu       sync.Mutex
	cond     *sync.Cond
	fifo     []message.Message
	shutdown bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds a Dispatcher backed by reg. warnThreshold is advisory: a
// backlog deeper than this logs a single warning. The FIFO itself is
// never capacity-bounded. warnThreshold <= 0 disables the warning. A
// nil logger defaults to log.Default().
func New(reg *registry.Registry, m *metrics.Metrics, logger *log.Logger, warnThreshold int) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	d := &Dispatcher{
		reg:           reg,
		metrics:       m,
		logger:        logger,
		warnThreshold: warnThreshold,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the worker goroutine. Calling Start more than once
// has no additional effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Publish appends msg to the FIFO and returns immediately. Returns
// false if msg fails validation or the dispatcher has been shut down.
func (d *Dispatcher) Publish(msg message.Message) bool {
	if !msg.Valid() {
		return false
	}

	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return false
	}
	d.fifo = append(d.fifo, msg)
	depth := len(d.fifo)
	if d.warnThreshold > 0 && depth > d.warnThreshold && !d.warned {
		d.warned = true
		d.logger.Printf("dispatch: backlog depth %d exceeds warning threshold %d", depth, d.warnThreshold)
	} else if depth <= d.warnThreshold {
		d.warned = false
	}
	d.mu.Unlock()
	d.cond.Signal()

	if d.metrics != nil {
		d.metrics.IncPublished(msg.Topic)
	}
	return true
}

// Shutdown stops accepting new deliveries and waits for the worker
// goroutine to drain the backlog and exit. Safe to call more than once.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.shutdown = true
		d.mu.Unlock()
		d.cond.Broadcast()
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.fifo) == 0 && !d.shutdown {
			d.cond.Wait()
		}
		if len(d.fifo) == 0 && d.shutdown {
			d.mu.Unlock()
			return
		}
		msg := d.fifo[0]
		d.fifo = d.fifo[1:]
		d.mu.Unlock()

		d.deliver(msg)
	}
}

// deliver fans msg out to a snapshot of topic's live subscribers,
// taken once under the registry's lock, then delivered outside it so
// a slow or panicking subscriber never blocks registry mutation. Every
// subscriber receives a pointer to the same msg: Message is immutable
// by convention, so sharing it costs nothing and matches the contract
// subscribers are handed.
func (d *Dispatcher) deliver(msg message.Message) {
	subs := d.reg.FindSubscribers(msg.Topic)
	if len(subs) == 0 {
		return
	}
	for _, sub := range subs {
		d.deliverOne(sub, &msg)
	}
	if d.metrics != nil {
		d.metrics.IncDelivered(msg.Topic, len(subs))
	}
}

// deliverOne calls sub.OnMessage with panic recovery: a subscriber
// that panics is logged and skipped, never allowed to crash the
// worker goroutine or prevent delivery to the remaining subscribers.
func (d *Dispatcher) deliverOne(sub registry.Subscriber, msg *message.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("dispatch: subscriber panicked delivering topic %q: %v", msg.Topic, r)
			if d.metrics != nil {
				d.metrics.IncSubscriberPanic(msg.Topic)
			}
		}
	}()
	sub.OnMessage(msg)
}
