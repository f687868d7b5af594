package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ph1losof/envcascade/source"
)

// Subscriber receives events from a Bus. Notify is called synchronously
// from the goroutine that published the event for the fan-out half of
// delivery (spec.md §4.5); Subscribers that need to do slow work should
// queue it themselves rather than block Notify.
type Subscriber interface {
	Notify(Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(Event)

func (f SubscriberFunc) Notify(e Event) { f(e) }

const defaultQueueCapacity = 256

// Bus is the Event Bus (spec.md §4.5): every Publish synchronously fans
// the event out to all current Subscribers, and also pushes it onto a
// bounded internal queue that EventChannel/Drain consumers can read
// asynchronously. When the queue is full, the oldest queued event is
// dropped to make room — publishers are never blocked by a slow or
// absent async consumer.
//
// Bus also implements source.ChangeNotifier, letting a Registry publish
// SourceAdded/SourceRemoved/CacheInvalidated events without source
// importing this package (spec.md §4.1, the injected-notifier pattern
// grounded on the teacher's ProjectAnalyzer wiring).
type Bus struct {
	log *zap.Logger

	mu          sync.Mutex
	subscribers []Subscriber

	queueMu sync.Mutex
	queue   chan Event
	cap     int
	dropped uint64
}

// NewBus constructs a Bus with the given async queue capacity. A capacity
// of 0 uses defaultQueueCapacity. Pass a nil logger to use zap.NewNop().
func NewBus(capacity int, log *zap.Logger) *Bus {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:   log,
		queue: make(chan Event, capacity),
		cap:   capacity,
	}
}

// Subscribe registers s to receive every future Publish synchronously.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Unsubscribe removes s. It is a no-op if s was never subscribed.
func (b *Bus) Unsubscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == s {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish fans e out to every current Subscriber synchronously, then
// enqueues it for async consumers, dropping the oldest queued event on
// overflow rather than blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, s := range subs {
		s.Notify(e)
	}

	b.enqueue(e)
}

func (b *Bus) enqueue(e Event) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()

	select {
	case b.queue <- e:
		return
	default:
	}

	// Queue full: drop the oldest entry to make room, per the
	// drop-oldest-on-overflow semantics in spec.md §4.5.
	select {
	case dropped := <-b.queue:
		b.dropped++
		b.log.Warn("event queue overflow, dropping oldest event",
			zap.Int("capacity", b.cap),
			zap.Uint64("total_dropped", b.dropped),
			zap.String("dropped_type", eventTypeName(dropped)),
		)
	default:
	}

	select {
	case b.queue <- e:
	default:
		// Another publisher raced us and refilled the queue; the event
		// this call was publishing is itself dropped rather than
		// blocking.
		b.dropped++
		b.log.Warn("event queue overflow, dropping newest event",
			zap.Int("capacity", b.cap),
			zap.Uint64("total_dropped", b.dropped),
		)
	}
}

// EventChannel exposes the async queue for consumers that want to range
// over events rather than subscribe synchronously.
func (b *Bus) EventChannel() <-chan Event { return b.queue }

// Dropped returns the total number of events dropped due to queue
// overflow since the Bus was created.
func (b *Bus) Dropped() uint64 {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return b.dropped
}

// --- source.ChangeNotifier -------------------------------------------

func (b *Bus) SourceAdded(id source.ID) {
	b.Publish(SourceAdded{SourceID: string(id)})
}

func (b *Bus) SourceRemoved(id source.ID) {
	b.Publish(SourceRemoved{SourceID: string(id)})
}

func (b *Bus) CacheInvalidated(reason string) {
	b.Publish(CacheInvalidated{Reason: reason})
}

func (b *Bus) VariablesChanged(id source.ID, added, removed, modified []string) {
	b.Publish(VariablesChanged{SourceID: string(id), Added: added, Removed: removed, Modified: modified})
}

func eventTypeName(e Event) string {
	switch e.(type) {
	case SourceAdded:
		return "SourceAdded"
	case SourceRemoved:
		return "SourceRemoved"
	case VariablesChanged:
		return "VariablesChanged"
	case CacheInvalidated:
		return "CacheInvalidated"
	default:
		return "unknown"
	}
}
